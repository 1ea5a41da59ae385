package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"beacon-telemetry/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// BeaconExportHeader 读数导出表头
var BeaconExportHeader = []string{
	"Gateway MAC",
	"Beacon MAC",
	"Type",
	"VBatt",
	"Temp",
	"RSSI",
	"RefPower",
}

// ExportBeaconsData GET /beacons-data/export
// 将 JOIN 后的读数行导出为 Excel 文件（仪表盘下载用）
func (h *BeaconHandler) ExportBeaconsData(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readingRepo.ListBeaconRows()
	if err != nil {
		h.logger.Error("Error exporting beacons data", zap.Error(err))
		WriteFail(w, "Failed to export beacons data", err)
		return
	}

	content, err := GenerateBeaconExport(rows)
	if err != nil {
		h.logger.Error("Error generating beacon export file", zap.Error(err))
		WriteFail(w, "Failed to export beacons data", err)
		return
	}

	filename := fmt.Sprintf("beacons-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// GenerateBeaconExport 生成读数导出 Excel 文件
// rows 为空时只生成表头
func GenerateBeaconExport(rows []models.BeaconRow) ([]byte, error) {
	f := excelize.NewFile()

	sheetName := "Beacon Readings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range BeaconExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写入数据行，NULL 字段留空
	for i, row := range rows {
		values := []any{
			row.GMAC,
			row.DMAC,
			row.Type,
			cellValueInt(row.VBatt),
			cellValueFloat(row.Temp),
			cellValueFloat(row.RSSI),
			cellValueInt(row.RefPower),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if value == nil {
				continue
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func cellValueInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func cellValueFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

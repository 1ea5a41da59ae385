package httpapi

import (
	"net/http"

	"beacon-telemetry/internal/models"
	"beacon-telemetry/internal/repository"
	"beacon-telemetry/internal/views"

	"go.uber.org/zap"
)

// BeaconHandler 信标聚合视图的只读 HTTP 处理器
type BeaconHandler struct {
	readingRepo *repository.ReadingRepository
	logger      *zap.Logger
}

// NewBeaconHandler 创建信标处理器
func NewBeaconHandler(readingRepo *repository.ReadingRepository, logger *zap.Logger) *BeaconHandler {
	return &BeaconHandler{
		readingRepo: readingRepo,
		logger:      logger,
	}
}

// GetBeaconsData GET /beacons-data
// 分组视图：网关 → 信标 → 类型桶
func (h *BeaconHandler) GetBeaconsData(w http.ResponseWriter, r *http.Request) {
	rows, err := h.readingRepo.ListBeaconRows()
	if err != nil {
		h.logger.Error("Error fetching beacons data", zap.Error(err))
		WriteFail(w, "Failed to fetch beacons data", err)
		return
	}

	WriteOK(w, "Beacons data fetched", views.GroupBeacons(rows))
}

// GetRSSIChartData GET /rssi-chart-data
// 扁平 RSSI 序列，供前端时序图消费
func (h *BeaconHandler) GetRSSIChartData(w http.ResponseWriter, r *http.Request) {
	series, err := h.readingRepo.ListRSSISeries()
	if err != nil {
		h.logger.Error("Error fetching rssi chart data", zap.Error(err))
		WriteFail(w, "Failed to fetch rssi chart data", err)
		return
	}
	if series == nil {
		series = []models.RSSIPoint{}
	}

	WriteOK(w, "RSSI data per beacon fetched", series)
}

// GetRoot GET / 存活探测
func (h *BeaconHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Server is running"})
}

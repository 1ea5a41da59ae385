package repository

import (
	"database/sql"
	"fmt"
	"time"

	"beacon-telemetry/internal/models"

	"go.uber.org/zap"
)

// ReadingRepository 信标读数仓库（append-only）
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository 创建信标读数仓库
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 持久化一条信标读数
// dmac 缺失的 entry 在任何 I/O 之前拒绝；可选字段按原样透传，
// 缺失值落库为 NULL（0 是合法测量值，必须与"未上报"区分）
func (r *ReadingRepository) Insert(gatewayID int64, entry *models.BeaconEntry) error {
	if entry.DMAC == "" {
		return models.ErrMissingDMAC
	}

	query := `
		INSERT INTO beacons (
			gateway_id, type, dmac, refpower, rssi, vbatt, temp, time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(
		query,
		gatewayID,
		entry.Type,
		entry.DMAC,
		nullInt(entry.RefPower),
		nullFloat(entry.RSSI),
		nullInt(entry.VBatt),
		nullFloat(entry.Temp),
		entry.Timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert beacon reading: %w", err)
	}

	return nil
}

// ListBeaconRows 返回读数 JOIN 网关的扁平行，供分组视图消费
// ORDER BY (gmac, dmac, type) 保证分组确定性
func (r *ReadingRepository) ListBeaconRows() ([]models.BeaconRow, error) {
	query := `
		SELECT g.gmac, b.dmac, b.type, b.vbatt, b.temp, b.rssi, b.refpower
		FROM beacons b
		JOIN gateways g ON b.gateway_id = g.id
		ORDER BY g.gmac, b.dmac, b.type
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query beacon rows: %w", err)
	}
	defer rows.Close()

	var result []models.BeaconRow
	for rows.Next() {
		var row models.BeaconRow
		var vbatt sql.NullInt64
		var temp, rssi sql.NullFloat64
		var refpower sql.NullInt64

		if err := rows.Scan(&row.GMAC, &row.DMAC, &row.Type, &vbatt, &temp, &rssi, &refpower); err != nil {
			return nil, fmt.Errorf("failed to scan beacon row: %w", err)
		}

		if vbatt.Valid {
			v := int(vbatt.Int64)
			row.VBatt = &v
		}
		if temp.Valid {
			t := temp.Float64
			row.Temp = &t
		}
		if rssi.Valid {
			s := rssi.Float64
			row.RSSI = &s
		}
		if refpower.Valid {
			p := int(refpower.Int64)
			row.RefPower = &p
		}

		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate beacon rows: %w", err)
	}

	return result, nil
}

// ListRSSISeries 返回 RSSI 非空的读数序列
// ORDER BY (gmac, dmac, id)，按插入顺序输出，供前端画图
func (r *ReadingRepository) ListRSSISeries() ([]models.RSSIPoint, error) {
	query := `
		SELECT g.gmac, b.dmac, b.rssi
		FROM beacons b
		JOIN gateways g ON b.gateway_id = g.id
		WHERE b.rssi IS NOT NULL
		ORDER BY g.gmac, b.dmac, b.id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rssi series: %w", err)
	}
	defer rows.Close()

	var result []models.RSSIPoint
	for rows.Next() {
		var point models.RSSIPoint
		if err := rows.Scan(&point.GMAC, &point.DMAC, &point.RSSI); err != nil {
			return nil, fmt.Errorf("failed to scan rssi point: %w", err)
		}
		result = append(result, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rssi series: %w", err)
	}

	return result, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// GatewayRepository 网关仓库
type GatewayRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewGatewayRepository 创建网关仓库
func NewGatewayRepository(db *sql.DB, logger *zap.Logger) *GatewayRepository {
	return &GatewayRepository{
		db:     db,
		logger: logger,
	}
}

// Resolve 根据 gmac 返回网关代理键，首次出现时创建
// 条件插入 + 查询两步：gmac 上的唯一约束保证并发解析同一
// gmac 时不会产生重复行（ON CONFLICT DO NOTHING）
func (r *GatewayRepository) Resolve(gmac string) (int64, error) {
	_, err := r.db.Exec(
		`INSERT INTO gateways (gmac) VALUES ($1) ON CONFLICT (gmac) DO NOTHING`,
		gmac,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert gateway %s: %w", gmac, err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM gateways WHERE gmac = $1`, gmac).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			// 插入后仍查不到，属于不变量被破坏；只影响当前消息
			return 0, fmt.Errorf("gateway with gmac=%s not found after insert/select", gmac)
		}
		return 0, fmt.Errorf("failed to query gateway %s: %w", gmac, err)
	}

	return id, nil
}

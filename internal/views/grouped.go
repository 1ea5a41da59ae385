package views

import (
	"beacon-telemetry/internal/models"
)

// BatterySample 类型1读数在分组视图中的投影
type BatterySample struct {
	VBatt *int     `json:"vbatt"`
	Temp  *float64 `json:"temp"`
}

// SignalSample 类型4读数在分组视图中的投影
type SignalSample struct {
	RSSI     *float64 `json:"rssi"`
	RefPower *int     `json:"refpower"`
}

// BeaconBuckets 单个信标按读数类型分桶的采样列表
type BeaconBuckets struct {
	Type1 []BatterySample `json:"type1"`
	Type4 []SignalSample  `json:"type4"`
}

// GatewayGroup 分组视图中一个网关的记录
type GatewayGroup struct {
	GMAC    string                    `json:"gmac"`
	Beacons map[string]*BeaconBuckets `json:"beacons"`
}

// GroupBeacons 将 JOIN 后的扁平行聚合为 网关→信标→类型桶 结构
// 纯函数。网关按首次出现顺序输出（输入已按 gmac 排序）；
// 未识别的读数类型已落库但不投影到任何桶
func GroupBeacons(rows []models.BeaconRow) []GatewayGroup {
	byGMAC := make(map[string]*GatewayGroup)
	groups := []*GatewayGroup{}

	for _, row := range rows {
		group, ok := byGMAC[row.GMAC]
		if !ok {
			group = &GatewayGroup{
				GMAC:    row.GMAC,
				Beacons: make(map[string]*BeaconBuckets),
			}
			groups = append(groups, group)
			byGMAC[row.GMAC] = group
		}

		buckets, ok := group.Beacons[row.DMAC]
		if !ok {
			buckets = &BeaconBuckets{
				Type1: []BatterySample{},
				Type4: []SignalSample{},
			}
			group.Beacons[row.DMAC] = buckets
		}

		kind, classified := models.Classify(row.Type)
		if !classified {
			continue
		}

		switch kind {
		case models.ReadingKindBattery:
			buckets.Type1 = append(buckets.Type1, BatterySample{
				VBatt: row.VBatt,
				Temp:  row.Temp,
			})
		case models.ReadingKindSignal:
			buckets.Type4 = append(buckets.Type4, SignalSample{
				RSSI:     row.RSSI,
				RefPower: row.RefPower,
			})
		}
	}

	result := make([]GatewayGroup, 0, len(groups))
	for _, group := range groups {
		result = append(result, *group)
	}

	return result
}

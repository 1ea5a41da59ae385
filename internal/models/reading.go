package models

// ReadingKind 读数类型判别值（beacons.type 列）
// 1 和 4 以外的值合法但不参与分组视图（存储但不投影）
type ReadingKind int

const (
	// ReadingKindBattery 电池电压 + 温度采样
	ReadingKindBattery ReadingKind = 1
	// ReadingKindSignal RSSI + 参考功率采样
	ReadingKindSignal ReadingKind = 4
)

// Classify 将原始 type 值映射为读数类型
// 未识别的值返回 false（调用方自行决定是否投影）
func Classify(rawType int) (ReadingKind, bool) {
	switch ReadingKind(rawType) {
	case ReadingKindBattery, ReadingKindSignal:
		return ReadingKind(rawType), true
	}
	return ReadingKind(rawType), false
}

// BeaconRow beacons JOIN gateways 的扁平行，供聚合视图消费
type BeaconRow struct {
	GMAC     string
	DMAC     string
	Type     int
	VBatt    *int
	Temp     *float64
	RSSI     *float64
	RefPower *int
}

// RSSIPoint RSSI 时序视图的一个点
type RSSIPoint struct {
	GMAC string  `json:"gmac"`
	DMAC string  `json:"dmac"`
	RSSI float64 `json:"rssi"`
}

package models

import (
	"errors"
	"time"
)

// 校验错误（单条消息级别，记录日志后丢弃，不影响后续消息）
var (
	ErrEmptyFrame        = errors.New("frame has no beacon entries")
	ErrMissingGatewayMAC = errors.New("frame has no resolvable gateway mac")
	ErrMissingDMAC       = errors.New("beacon entry missing dmac")
)

// Frame 一条 MQTT 遥测消息解码后的结构
// gmac 可能在顶层缺失，此时从第一个 entry 的 gmac 回退获取
type Frame struct {
	GMAC    string        `json:"gmac,omitempty"`
	Entries []BeaconEntry `json:"obj"`
}

// BeaconEntry 网关上报的单个信标观测
// 可选数值字段使用指针：0 是合法测量值，必须与"未上报"区分
type BeaconEntry struct {
	GMAC     string   `json:"gmac,omitempty"`
	DMAC     string   `json:"dmac"`
	Type     int      `json:"type"`
	RefPower *int     `json:"refpower,omitempty"`
	RSSI     *float64 `json:"rssi,omitempty"`
	VBatt    *int     `json:"vbatt,omitempty"`
	Temp     *float64 `json:"temp,omitempty"`
	Time     string   `json:"time,omitempty"`
}

// GatewayMAC 返回帧级 gmac，缺失时回退到第一个 entry 的 gmac
func (f *Frame) GatewayMAC() string {
	if f.GMAC != "" {
		return f.GMAC
	}
	if len(f.Entries) > 0 {
		return f.Entries[0].GMAC
	}
	return ""
}

// Validate 检查帧是否携带可落库的数据
func (f *Frame) Validate() error {
	if len(f.Entries) == 0 {
		return ErrEmptyFrame
	}
	if f.GatewayMAC() == "" {
		return ErrMissingGatewayMAC
	}
	return nil
}

// entryTimeLayouts 入站 time 字段支持的格式
var entryTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Timestamp 解析 entry 上报时间；缺失或不可解析时返回 now（写入时刻）
func (e *BeaconEntry) Timestamp(now time.Time) time.Time {
	if e.Time == "" {
		return now
	}
	for _, layout := range entryTimeLayouts {
		if ts, err := time.Parse(layout, e.Time); err == nil {
			return ts
		}
	}
	return now
}

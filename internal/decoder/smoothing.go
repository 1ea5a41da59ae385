package decoder

import (
	"sync"

	"beacon-telemetry/internal/models"
)

// Smoother 可选的解码后平滑阶段（Frame -> Frame）
// 对每个 entry 的 RSSI 做一维卡尔曼滤波，状态按 (gmac, dmac) 维护，
// 跨消息保留。MQTT 回调并发执行，状态访问加锁。
// 默认不启用，不参与解码本身。
type Smoother struct {
	processNoise     float64
	measurementNoise float64

	mu     sync.Mutex
	states map[pairKey]*kalmanState
}

type pairKey struct {
	gmac string
	dmac string
}

// kalmanState 标量卡尔曼滤波状态
type kalmanState struct {
	estimate float64
	variance float64
	primed   bool
}

// NewSmoother 创建 RSSI 平滑器
// processNoise: 过程噪声 Q；measurementNoise: 测量噪声 R
func NewSmoother(processNoise, measurementNoise float64) *Smoother {
	return &Smoother{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
		states:           make(map[pairKey]*kalmanState),
	}
}

// Apply 对帧内每个携带 RSSI 的 entry 做平滑，原地更新
// 无 RSSI 的 entry 不受影响
func (s *Smoother) Apply(frame *models.Frame) *models.Frame {
	gmac := frame.GatewayMAC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range frame.Entries {
		entry := &frame.Entries[i]
		if entry.RSSI == nil {
			continue
		}

		key := pairKey{gmac: gmac, dmac: entry.DMAC}
		state, ok := s.states[key]
		if !ok {
			state = &kalmanState{}
			s.states[key] = state
		}

		smoothed := state.update(*entry.RSSI, s.processNoise, s.measurementNoise)
		entry.RSSI = &smoothed
	}

	return frame
}

// update 标准的 predict + correct 一步
func (k *kalmanState) update(measurement, q, r float64) float64 {
	if !k.primed {
		k.estimate = measurement
		k.variance = r
		k.primed = true
		return k.estimate
	}

	// predict
	k.variance += q

	// correct
	gain := k.variance / (k.variance + r)
	k.estimate += gain * (measurement - k.estimate)
	k.variance *= 1 - gain

	return k.estimate
}

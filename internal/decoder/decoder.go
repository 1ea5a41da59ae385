package decoder

import (
	"encoding/json"
	"fmt"

	"beacon-telemetry/internal/models"
)

// Decode 解析一条入站遥测消息的原始载荷
// 纯函数，无副作用；载荷不可解析时返回错误，由调用方记录并丢弃该消息
func Decode(payload []byte) (*models.Frame, error) {
	var frame models.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry frame: %w", err)
	}

	return &frame, nil
}

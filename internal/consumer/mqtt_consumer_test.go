package consumer

import (
	"database/sql"
	"database/sql/driver"
	"testing"

	"beacon-telemetry/internal/config"
	"beacon-telemetry/internal/models"
	"beacon-telemetry/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupConsumer 构造不带 MQTT/Redis 的消费者：HandleMessage 不触碰
// MQTT 客户端，Stream 为空时 fan-out 关闭
func setupConsumer(t *testing.T) (sqlmock.Sqlmock, *MQTTConsumer, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.Beacon.Topic = "test/topic"
	cfg.Beacon.Stream = ""

	gatewayRepo := repository.NewGatewayRepository(db, logger)
	readingRepo := repository.NewReadingRepository(db, logger)

	c := NewMQTTConsumer(cfg, nil, nil, gatewayRepo, readingRepo, logger)
	return mock, c, func() { db.Close() }
}

func expectGatewayResolve(mock sqlmock.Sqlmock, gmac string, id int64) {
	mock.ExpectExec(`INSERT INTO gateways`).
		WithArgs(gmac).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id FROM gateways`).
		WithArgs(gmac).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
}

func TestHandleMessage_PersistsAllEntries(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	expectGatewayResolve(mock, "AABBCCDDEEFF", 7)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 1, "112233445566", nil, nil, 80, 25.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 4, "112233445577", -40, -60.5, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	payload := []byte(`{
		"gmac": "AABBCCDDEEFF",
		"obj": [
			{"dmac": "112233445566", "type": 1, "vbatt": 80, "temp": 25.5},
			{"dmac": "112233445577", "type": 4, "rssi": -60.5, "refpower": -40}
		]
	}`)

	require.NoError(t, c.HandleMessage("test/topic", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_PartialBatchTolerance(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	// 中间 entry 缺少 dmac：跳过它，其余 N-1 条照常落库
	expectGatewayResolve(mock, "AABBCCDDEEFF", 7)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 1, "112233445566", nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 1, "112233445588", nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	payload := []byte(`{
		"gmac": "AABBCCDDEEFF",
		"obj": [
			{"dmac": "112233445566", "type": 1},
			{"type": 1},
			{"dmac": "112233445588", "type": 1}
		]
	}`)

	require.NoError(t, c.HandleMessage("test/topic", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_EntryWriteFailureDoesNotAbortSiblings(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	// 第一条写入失败：记录并跳过，第二条仍然尝试写入
	expectGatewayResolve(mock, "AABBCCDDEEFF", 7)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 1, "112233445566", nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 1, "112233445577", nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	payload := []byte(`{
		"gmac": "AABBCCDDEEFF",
		"obj": [
			{"dmac": "112233445566", "type": 1},
			{"dmac": "112233445577", "type": 1}
		]
	}`)

	require.NoError(t, c.HandleMessage("test/topic", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_EmptyFrameNoWrites(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	err := c.HandleMessage("test/topic", []byte(`{"gmac": "AABBCCDDEEFF", "obj": []}`))
	assert.ErrorIs(t, err, models.ErrEmptyFrame)

	// 无任何 SQL 期望：空帧不产生写入
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_NoResolvableGMACNoWrites(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	err := c.HandleMessage("test/topic", []byte(`{"obj": [{"dmac": "112233445566", "type": 1}]}`))
	assert.ErrorIs(t, err, models.ErrMissingGatewayMAC)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_GMACFallbackFromFirstEntry(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	expectGatewayResolve(mock, "FFEEDDCCBBAA", 3)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(3), 1, "112233445566", nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload := []byte(`{"obj": [{"gmac": "FFEEDDCCBBAA", "dmac": "112233445566", "type": 1}]}`)

	require.NoError(t, c.HandleMessage("test/topic", payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_MalformedPayloadDropped(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	err := c.HandleMessage("test/topic", []byte(`not json`))
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_ResolutionFailureAbortsMessage(t *testing.T) {
	mock, c, closeDB := setupConsumer(t)
	defer closeDB()

	// 网关解析失败：整条消息不再尝试任何读数写入
	mock.ExpectExec(`INSERT INTO gateways`).
		WithArgs("AABBCCDDEEFF").
		WillReturnError(sql.ErrConnDone)

	payload := []byte(`{"gmac": "AABBCCDDEEFF", "obj": [{"dmac": "112233445566", "type": 1}]}`)

	err := c.HandleMessage("test/topic", payload)
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessage_SmoothingAppliedWhenEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.Beacon.Topic = "test/topic"
	cfg.Smoothing.Enabled = true
	cfg.Smoothing.ProcessNoise = 0.008
	cfg.Smoothing.MeasurementNoise = 4.0

	gatewayRepo := repository.NewGatewayRepository(db, logger)
	readingRepo := repository.NewReadingRepository(db, logger)
	c := NewMQTTConsumer(cfg, nil, nil, gatewayRepo, readingRepo, logger)

	// 首个样本：滤波器直通
	expectGatewayResolve(mock, "AABBCCDDEEFF", 7)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 4, "112233445566", nil, -60.0, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	// 第二个样本：平滑后的 RSSI 落在 (-70, -60) 之间，而不是原始 -70
	expectGatewayResolve(mock, "AABBCCDDEEFF", 7)
	mock.ExpectExec(`INSERT INTO beacons`).
		WithArgs(int64(7), 4, "112233445566", nil, smoothedRSSIBetween(-70, -60), nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	first := []byte(`{"gmac": "AABBCCDDEEFF", "obj": [{"dmac": "112233445566", "type": 4, "rssi": -60}]}`)
	second := []byte(`{"gmac": "AABBCCDDEEFF", "obj": [{"dmac": "112233445566", "type": 4, "rssi": -70}]}`)

	require.NoError(t, c.HandleMessage("test/topic", first))
	require.NoError(t, c.HandleMessage("test/topic", second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// smoothedRSSIBetween 匹配开区间 (lo, hi) 内的浮点参数
func smoothedRSSIBetween(lo, hi float64) sqlmock.Argument {
	return rangeArg{lo: lo, hi: hi}
}

type rangeArg struct {
	lo, hi float64
}

func (a rangeArg) Match(v driver.Value) bool {
	f, ok := v.(float64)
	if !ok {
		return false
	}
	return f > a.lo && f < a.hi
}

package views

import (
	"testing"

	"beacon-telemetry/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestGroupBeacons_BucketsByType(t *testing.T) {
	rows := []models.BeaconRow{
		{GMAC: "A", DMAC: "X", Type: 1, VBatt: intPtr(80), Temp: float64Ptr(25)},
		{GMAC: "A", DMAC: "X", Type: 4, RSSI: float64Ptr(-60), RefPower: intPtr(-40)},
	}

	result := GroupBeacons(rows)
	require.Len(t, result, 1)

	group := result[0]
	assert.Equal(t, "A", group.GMAC)
	require.Contains(t, group.Beacons, "X")

	buckets := group.Beacons["X"]
	require.Len(t, buckets.Type1, 1)
	assert.Equal(t, 80, *buckets.Type1[0].VBatt)
	assert.Equal(t, 25.0, *buckets.Type1[0].Temp)

	require.Len(t, buckets.Type4, 1)
	assert.Equal(t, -60.0, *buckets.Type4[0].RSSI)
	assert.Equal(t, -40, *buckets.Type4[0].RefPower)
}

func TestGroupBeacons_FirstSeenGatewayOrder(t *testing.T) {
	rows := []models.BeaconRow{
		{GMAC: "A", DMAC: "X", Type: 1},
		{GMAC: "B", DMAC: "Y", Type: 1},
		{GMAC: "A", DMAC: "Z", Type: 1},
	}

	result := GroupBeacons(rows)
	require.Len(t, result, 2)

	assert.Equal(t, "A", result[0].GMAC)
	assert.Equal(t, "B", result[1].GMAC)

	// 同一网关的后续行合并进已有记录
	assert.Len(t, result[0].Beacons, 2)
}

func TestGroupBeacons_UnclassifiedTypesExcluded(t *testing.T) {
	// 未识别的 type 已落库，但不投影到任何桶
	rows := []models.BeaconRow{
		{GMAC: "A", DMAC: "X", Type: 2, VBatt: intPtr(50)},
		{GMAC: "A", DMAC: "X", Type: 1, VBatt: intPtr(80)},
	}

	result := GroupBeacons(rows)
	require.Len(t, result, 1)

	buckets := result[0].Beacons["X"]
	require.NotNil(t, buckets)
	assert.Len(t, buckets.Type1, 1)
	assert.Len(t, buckets.Type4, 0)
}

func TestGroupBeacons_NullMeasurementsPreserved(t *testing.T) {
	// NULL 字段原样透传（序列化为 JSON null），不会变成 0
	rows := []models.BeaconRow{
		{GMAC: "A", DMAC: "X", Type: 1, VBatt: intPtr(0)},
		{GMAC: "A", DMAC: "X", Type: 1},
	}

	result := GroupBeacons(rows)
	buckets := result[0].Beacons["X"]
	require.Len(t, buckets.Type1, 2)

	require.NotNil(t, buckets.Type1[0].VBatt)
	assert.Equal(t, 0, *buckets.Type1[0].VBatt)
	assert.Nil(t, buckets.Type1[1].VBatt)
}

func TestGroupBeacons_EmptyInput(t *testing.T) {
	result := GroupBeacons(nil)
	assert.NotNil(t, result)
	assert.Len(t, result, 0)
}

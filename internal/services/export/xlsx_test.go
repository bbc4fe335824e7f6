package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/evn/fleet_tracker/internal/services/stats"
)

func TestWriteStatsXLSX(t *testing.T) {
	t.Parallel()

	avg, peak := 33.33, 80.5
	plate := "B-12"
	rows := []stats.VehicleStats{
		{VehicleID: 1, VehicleName: "Bus", Plate: &plate, Stats: stats.Stats{TotalKm: 12.5, AvgSpeedKmh: &avg, MaxSpeedKmh: &peak, SampleCount: 40}},
		{VehicleID: 2, VehicleName: "Spare"},
	}

	var buf bytes.Buffer
	at := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, WriteStatsXLSX(&buf, 7, rows, at))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "Last 7 days, generated 2025-03-31T12:00:00Z", got[0][0])
	assert.Equal(t, "Distance (km)", got[1][3])
	assert.Equal(t, []string{"1", "Bus", "B-12", "12.5", "33.33", "80.5", "40"}, got[2])
	assert.Equal(t, []string{"2", "Spare", "", "0", "", "", "0"}, got[3])
}

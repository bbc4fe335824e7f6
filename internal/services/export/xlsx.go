// Package export renders window statistics as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/evn/fleet_tracker/internal/services/stats"
)

const sheetName = "Stats"

var header = []interface{}{
	"Vehicle ID", "Vehicle", "Plate", "Distance (km)", "Avg speed (km/h)", "Max speed (km/h)", "Positions",
}

// WriteStatsXLSX writes one row per vehicle below a title row naming the
// window.
func WriteStatsXLSX(w io.Writer, days int, rows []stats.VehicleStats, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	title := fmt.Sprintf("Last %d days, generated %s", days, generatedAt.Format(time.RFC3339))
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A2", &header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.VehicleID,
			r.VehicleName,
			optional(r.Plate),
			r.TotalKm,
			optional(r.AvgSpeedKmh),
			optional(r.MaxSpeedKmh),
			r.SampleCount,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 24); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// optional turns a nil pointer into an empty cell.
func optional[T any](v *T) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// internal/store/export.go
package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var summaryHeader = []string{
	"username", "follower_count", "total_like_count", "video_count", "total_views", "latest_scrape",
}

// ExportCSV writes the rollup as CSV.
func ExportCSV(w io.Writer, summaries []Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("store: write csv header: %w", err)
	}
	for _, s := range summaries {
		record := []string{
			s.Username,
			strconv.FormatInt(s.FollowerCount, 10),
			strconv.FormatInt(s.TotalLikeCount, 10),
			strconv.FormatInt(s.VideoCount, 10),
			strconv.FormatInt(s.TotalViews, 10),
			s.LatestScrape,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("store: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("store: flush csv: %w", err)
	}
	return nil
}

// ExportXLSX writes the rollup as an Excel workbook for ad hoc reporting.
func ExportXLSX(filename string, summaries []Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("store: rename sheet: %w", err)
	}

	for col, name := range summaryHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("store: header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("store: write header: %w", err)
		}
	}

	for i, s := range summaries {
		values := []interface{}{
			s.Username, s.FollowerCount, s.TotalLikeCount, s.VideoCount, s.TotalViews, s.LatestScrape,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("store: data cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("store: write row: %w", err)
			}
		}
	}

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("store: save workbook: %w", err)
	}
	return nil
}

// Package export adapts the teacher's internal/output/excel.go writer into
// a batch exporter for storage.Record sets: ToXLSX renders a filtered
// list_products page as a spreadsheet, an additive capability alongside the
// per-file JSON contract (SPEC_FULL.md B.1), not a replacement for it.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/productlens/extractor/internal/storage"
)

var headers = []string{
	"id", "title", "sku", "url", "brand", "current_price", "currency",
	"version", "extraction_success", "extracted_at",
}

const sheetName = "Products"

// ToXLSX renders records as one row per product on a single sheet, column
// order fixed by the package-level headers slice, and writes the workbook
// to w.
func ToXLSX(records []storage.Record, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	index, err := file.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("export: create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	file.DeleteSheet("Sheet1")

	headerStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	for col, h := range headers {
		cell := columnName(col+1) + "1"
		if err := file.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("export: write header %q: %w", h, err)
		}
	}
	if err := file.SetCellStyle(sheetName, "A1", columnName(len(headers))+"1", headerStyle); err != nil {
		return fmt.Errorf("export: style headers: %w", err)
	}

	for row, r := range records {
		excelRow := row + 2 // header occupies row 1
		values := []interface{}{
			r.ID,
			r.Product.Title,
			r.Product.SKU,
			r.Product.URL,
			r.Product.Brand,
			r.Product.Price.CurrentPrice,
			r.Product.Price.Currency,
			r.Version,
			r.Product.ExtractionSuccess,
			r.Product.ExtractedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		for col, v := range values {
			cell := columnName(col+1) + strconv.Itoa(excelRow)
			if err := file.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("export: write row %d: %w", row, err)
			}
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

// columnName converts a 1-based column index to its spreadsheet letter
// name (1 -> "A", 27 -> "AA"), matching the teacher's excel.go helper.
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

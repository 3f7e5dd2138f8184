package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/productlens/extractor/internal/product"
	"github.com/productlens/extractor/internal/storage"
)

func TestToXLSXWritesOneRowPerRecord(t *testing.T) {
	records := []storage.Record{
		{
			ID: "p1",
			Product: product.Data{
				Title: "Mouse", SKU: "A1", Brand: "Acme",
				Price:             product.Price{CurrentPrice: 9.99, Currency: "USD"},
				ExtractionSuccess: true,
				ExtractedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			},
			Version: 1,
		},
		{
			ID: "p2",
			Product: product.Data{
				Title: "Keyboard", SKU: "B2",
				Price: product.Price{CurrentPrice: 49.5, Currency: "EUR"},
			},
			Version: 2,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, ToXLSX(records, &buf))

	file, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer file.Close()

	header, err := file.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", header)

	id1, err := file.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "p1", id1)

	title2, err := file.GetCellValue(sheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", title2)
}

func TestColumnNameMatchesSpreadsheetConvention(t *testing.T) {
	assert.Equal(t, "A", columnName(1))
	assert.Equal(t, "Z", columnName(26))
	assert.Equal(t, "AA", columnName(27))
}

// Package export serialises report snapshots for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/tablero-sucursales/tablero/internal/reports"
)

// WriteRowsCSV writes a header of columns followed by one record per row.
// Missing fields become empty cells.
func WriteRowsCSV(w io.Writer, columns []string, rows []reports.Row) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = reports.Stringify(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTotalsCSV appends the kardex summary as metric/value pairs.
func WriteTotalsCSV(w io.Writer, totals reports.RoundedTotals) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Metrica", "Valor"}); err != nil {
		return err
	}
	records := [][]string{
		{"Unidades", formatFloat(totals.UnitsSum)},
		{"Costo", formatFloat(totals.CostSum)},
		{"Precio de lista", formatFloat(totals.ListPriceSum)},
		{"Margen", formatFloat(totals.MarginSum)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

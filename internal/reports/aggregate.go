package reports

import "github.com/shopspring/decimal"

// AggregateFields names the kardex columns the summary reads.
type AggregateFields struct {
	Quantity  string
	UnitCost  string
	ListPrice string
}

// Totals are accumulated at full precision; round with Rounded for display.
type Totals struct {
	Units     decimal.Decimal
	Cost      decimal.Decimal
	ListPrice decimal.Decimal
	Margin    decimal.Decimal
}

// RoundedTotals is the presentation form of Totals.
type RoundedTotals struct {
	UnitsSum     float64 `json:"units_sum"`
	CostSum      float64 `json:"cost_sum"`
	ListPriceSum float64 `json:"list_price_sum"`
	MarginSum    float64 `json:"margin_sum"`
}

// Summarize reduces rows already restricted to one transaction type. Missing or
// non-numeric values count as zero.
func Summarize(rows []Row, fields AggregateFields) Totals {
	units := decimal.Zero
	cost := decimal.Zero
	list := decimal.Zero
	for _, row := range rows {
		q := decimalField(row, fields.Quantity)
		units = units.Add(q)
		cost = cost.Add(q.Mul(decimalField(row, fields.UnitCost)))
		list = list.Add(q.Mul(decimalField(row, fields.ListPrice)))
	}
	return Totals{Units: units, Cost: cost, ListPrice: list, Margin: list.Sub(cost)}
}

// Rounded rounds every sum once, to two decimals.
func (t Totals) Rounded() RoundedTotals {
	return RoundedTotals{
		UnitsSum:     Round2(t.Units).InexactFloat64(),
		CostSum:      Round2(t.Cost).InexactFloat64(),
		ListPriceSum: Round2(t.ListPrice).InexactFloat64(),
		MarginSum:    Round2(t.Margin).InexactFloat64(),
	}
}

func decimalField(row Row, field string) decimal.Decimal {
	if field == "" {
		return decimal.Zero
	}
	d, ok := numeric(row[field])
	if !ok {
		return decimal.Zero
	}
	return d
}

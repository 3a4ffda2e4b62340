package reports

import (
	"fmt"
	"sort"
)

// Definition parametrises the generic report pipeline: which per-branch table
// to read, how to filter and sort it, and how rows are transformed.
type Definition struct {
	Name        string
	Title       string
	TablePrefix string
	DateField   string
	SortField   string
	Columns     []string
	Equals      []Equality
	Transformer Transformer
	Aggregate   *AggregateFields
}

// TableFor returns the concrete table holding a branch's rows.
func (d Definition) TableFor(branch BranchID) string {
	return fmt.Sprintf("%s_%s", d.TablePrefix, branch)
}

// DefaultSort orders by the sort field, newest first.
func (d Definition) DefaultSort() Sort {
	field := d.SortField
	if field == "" {
		field = d.DateField
	}
	return Sort{Field: field, Direction: Desc}
}

// Cortes lists cash-register close-outs.
func Cortes() Definition {
	return Definition{
		Name:        "cortes",
		Title:       "Cortes de caja",
		TablePrefix: "cortes",
		DateField:   "fecha",
		SortField:   "fecha",
		Columns:     []string{"id", "fecha", "hora", "caja", "cajero", "efectivo", "tarjeta", "total", "diferencia"},
		Transformer: Transformer{
			DateTimeField: "fecha",
			DateField:     "fecha",
			TimeField:     "hora",
			RoundFields:   []string{"efectivo", "tarjeta", "total", "diferencia"},
		},
	}
}

// Salidas lists cash-drawer withdrawals.
func Salidas() Definition {
	return Definition{
		Name:        "salidas",
		Title:       "Salidas de efectivo",
		TablePrefix: "salidas",
		DateField:   "fecha",
		SortField:   "fecha",
		Columns:     []string{"id", "fecha", "hora", "concepto", "monto", "autorizo"},
		Transformer: Transformer{
			DateTimeField: "fecha",
			DateField:     "fecha",
			TimeField:     "hora",
			RoundFields:   []string{"monto"},
		},
	}
}

// Kardex summarises sales movements of a single transaction type.
func Kardex(tipo string) Definition {
	return Definition{
		Name:        "kardex",
		Title:       "Resumen de ventas",
		TablePrefix: "kardex",
		DateField:   "fecha",
		SortField:   "fecha",
		Columns:     []string{"id", "fecha", "hora", "tipo", "producto", "cantidad", "costo", "precio"},
		Equals:      []Equality{{Field: "tipo", Value: tipo}},
		// Unit costs stay unrounded so the summary rounds once, at the end.
		Transformer: Transformer{
			DateTimeField: "fecha",
			DateField:     "fecha",
			TimeField:     "hora",
		},
		Aggregate: &AggregateFields{Quantity: "cantidad", UnitCost: "costo", ListPrice: "precio"},
	}
}

// Registry looks definitions up by name.
type Registry struct {
	defs map[string]Definition
}

// NewRegistry indexes the given definitions.
func NewRegistry(defs ...Definition) *Registry {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		r.defs[d.Name] = d
	}
	return r
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// All returns the definitions sorted by name.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

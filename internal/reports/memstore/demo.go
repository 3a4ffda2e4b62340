package memstore

import (
	"fmt"
	"time"

	"github.com/tablero-sucursales/tablero/internal/reports"
)

// SeedDemo fills the store with a window record and a week of sample rows per
// branch for the built-in reports.
func SeedDemo(s *Store, configTable string, branches []reports.BranchID, now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	start := day.AddDate(0, 0, -6)
	s.Insert(configTable, reports.Row{"id": 1, "fecha_inicio": start, "fecha_fin": day.Add(24*time.Hour - time.Second)})

	productos := []string{"CAFE AMERICANO", "PAN DULCE", "AGUA 600ML", "JUGO NARANJA"}
	for b, branch := range branches {
		for d := 0; d < 7; d++ {
			at := start.AddDate(0, 0, d).Add(time.Duration(9+b) * time.Hour)
			id := fmt.Sprintf("%s-%d", branch, d+1)
			s.Insert("cortes_"+branch.String(), reports.Row{
				"id": id, "fecha": at.Add(12 * time.Hour), "caja": fmt.Sprintf("CAJA %d", b+1), "cajero": "TURNO VESPERTINO",
				"efectivo": 1520.455 + float64(d*10), "tarjeta": 980.1, "total": 2500.555 + float64(d*10), "diferencia": -0.005,
			})
			s.Insert("salidas_"+branch.String(), reports.Row{
				"id": id, "fecha": at.Add(3 * time.Hour), "concepto": "PAGO PROVEEDOR", "monto": 350.0 + float64(d), "autorizo": "GERENCIA",
			})
			for p, producto := range productos {
				s.Insert("kardex_"+branch.String(), reports.Row{
					"id": fmt.Sprintf("%s-%d", id, p), "fecha": at.Add(time.Duration(p) * time.Minute), "tipo": "VENTA",
					"producto": producto, "cantidad": 1 + p, "costo": 10.005 * float64(p+1), "precio": 18.5 * float64(p+1),
				})
			}
		}
	}
}

// Package ledger holds the budget lines and the two engines that mutate
// them: expense posting and reconducción transfers.
package ledger

import (
	"errors"
	"time"
)

// BudgetLine is one row of presupuesto_detalle, keyed by
// (proyecto, dgeneral, dauxiliar, fuente, partida).
type BudgetLine struct {
	Proyecto         string  `json:"proyecto"`
	DGeneral         string  `json:"dgeneral"`
	DAuxiliar        string  `json:"dauxiliar"`
	Fuente           string  `json:"fuente"`
	Partida          string  `json:"partida"`
	Presupuesto      float64 `json:"presupuesto"`
	TotalGastado     float64 `json:"total_gastado"`
	TotalReconducido float64 `json:"total_reconducido"`
	SaldoDisponible  float64 `json:"saldo_disponible"`
}

// Saldo is the single source of truth for the available balance. The stored
// saldo_disponible column is always derived through this function, never
// written directly.
func Saldo(presupuesto, totalGastado, totalReconducido float64) float64 {
	return presupuesto - totalGastado + totalReconducido
}

// Recompute refreshes the derived saldo from the line's source fields.
func (l *BudgetLine) Recompute() {
	l.SaldoDisponible = Saldo(l.Presupuesto, l.TotalGastado, l.TotalReconducido)
}

// Expense is one row of gastos_detalle, denormalized onto its budget line by
// (proyecto, partida). DevengadoID links expenses posted on behalf of a
// Devengado document so its cancellation can remove them.
type Expense struct {
	ID          int64     `json:"id"`
	Proyecto    string    `json:"proyecto"`
	Partida     string    `json:"partida"`
	Importe     float64   `json:"importe"`
	Fecha       time.Time `json:"fecha"`
	Descripcion string    `json:"descripcion,omitempty"`
	DevengadoID *int64    `json:"id_devengado,omitempty"`
}

// Reallocation records one reconducción movement between two partidas of a
// project. Monto is always positive; the sign lives in the ledger deltas.
type Reallocation struct {
	ID             int64     `json:"id"`
	Proyecto       string    `json:"proyecto"`
	PartidaOrigen  string    `json:"partida_origen"`
	PartidaDestino string    `json:"partida_destino"`
	Monto          float64   `json:"monto"`
	Motivo         string    `json:"motivo,omitempty"`
	Fecha          time.Time `json:"fecha"`
}

// CatalogKeys are the catalog attributes a budget line inherits when it is
// created implicitly (reallocation target, expense against a fresh partida).
type CatalogKeys struct {
	DGeneral  string
	DAuxiliar string
	Fuente    string
}

// Domain errors.
var (
	ErrLineNotFound    = errors.New("ledger: budget line not found")
	ErrExpenseNotFound = errors.New("ledger: expense not found")
	ErrInvalidImporte  = errors.New("ledger: importe must be greater than zero")
	ErrSamePartida     = errors.New("ledger: origin and destination partida are the same")
)

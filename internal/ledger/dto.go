package ledger

import "time"

// UpsertLineRequest creates or updates a budget line's allocation.
type UpsertLineRequest struct {
	Proyecto    string  `json:"proyecto" validate:"required"`
	DGeneral    string  `json:"dgeneral" validate:"required"`
	DAuxiliar   string  `json:"dauxiliar" validate:"required"`
	Fuente      string  `json:"fuente" validate:"required"`
	Partida     string  `json:"partida" validate:"required"`
	Presupuesto float64 `json:"presupuesto" validate:"gte=0"`
}

// PostExpenseRequest appends an expense against a budget line.
type PostExpenseRequest struct {
	Proyecto    string     `json:"proyecto" validate:"required"`
	Partida     string     `json:"partida" validate:"required"`
	Importe     float64    `json:"importe" validate:"required,gt=0"`
	Fecha       *time.Time `json:"fecha,omitempty"`
	Descripcion string     `json:"descripcion,omitempty"`
}

// ReallocateRequest moves budget between two partidas of a project.
type ReallocateRequest struct {
	Proyecto       string     `json:"proyecto" validate:"required"`
	PartidaOrigen  string     `json:"partida_origen" validate:"required"`
	PartidaDestino string     `json:"partida_destino" validate:"required"`
	Monto          float64    `json:"monto" validate:"required,gt=0"`
	Motivo         string     `json:"motivo,omitempty"`
	Fecha          *time.Time `json:"fecha,omitempty"`
}

// ReallocateResult reports both recomputed lines. Negativo flags an
// overdrawn origin; the transfer is never rejected for it.
type ReallocateResult struct {
	Negativo     bool       `json:"negativo"`
	Origen       BudgetLine `json:"origen"`
	Destino      BudgetLine `json:"destino"`
	DestinoNuevo bool       `json:"destino_creado"`
}

// Package devengados implements the last document of the budget chain: the
// Devengado that recognizes delivered goods or services against a
// Comprometido and posts the matching expenses onto the budget ledger.
package devengados

import (
	"errors"
	"time"
)

// Document states.
const (
	EstadoPendiente = "PENDIENTE"
	EstadoGuardado  = "GUARDADO"
	EstadoCancelado = "CANCELADO"
)

// Devengado is a document header plus its detail lines. MontoLiberado is the
// committed amount the document releases back: max(0, comprometido − devengado).
type Devengado struct {
	ID                int64     `json:"id"`
	FolioNum          int64     `json:"folio_num"`
	NoDevengado       string    `json:"no_devengado"`
	ComprometidoID    int64     `json:"id_comprometido"`
	Proyecto          string    `json:"proyecto"`
	Fecha             time.Time `json:"fecha"`
	MontoComprometido float64   `json:"monto_comprometido"`
	MontoDevengado    float64   `json:"monto_devengado"`
	MontoLiberado     float64   `json:"monto_liberado"`
	Estado            string    `json:"estado"`
	CreatedAt         time.Time `json:"created_at"`
	Detalles          []Detalle `json:"detalles,omitempty"`
}

// Detalle is one line of a Devengado.
type Detalle struct {
	ID          int64   `json:"id"`
	DevengadoID int64   `json:"id_devengado"`
	Renglon     int     `json:"renglon"`
	Partida     string  `json:"partida"`
	Factura     string  `json:"factura,omitempty"`
	Descripcion string  `json:"descripcion,omitempty"`
	Importe     float64 `json:"importe"`
}

// Domain errors.
var (
	ErrNotFound           = errors.New("devengado no encontrado")
	ErrExcedeComprometido = errors.New("el monto devengado excede el monto comprometido")
	ErrFueraDeVigencia    = errors.New("el devengado ya no es editable fuera de su mes de vigencia")
	ErrCancelado          = errors.New("el devengado está cancelado")
)

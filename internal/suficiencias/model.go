// Package suficiencias implements the first document of the budget chain:
// the Suficiencia Presupuestal that authorizes a planned expenditure.
package suficiencias

import "time"

// Suficiencia is a document header plus its ordered detail lines.
type Suficiencia struct {
	ID            int64     `json:"id"`
	FolioNum      int64     `json:"folio_num"`
	NoSuficiencia string    `json:"no_suficiencia"`
	Proyecto      string    `json:"proyecto"`
	DGeneral      string    `json:"dgeneral"`
	DAuxiliar     string    `json:"dauxiliar"`
	Fuente        string    `json:"fuente"`
	Programa      string    `json:"programa,omitempty"`
	Fecha         time.Time `json:"fecha"`
	Justificacion string    `json:"justificacion,omitempty"`
	Subtotal      float64   `json:"subtotal"`
	CreatedAt     time.Time `json:"created_at"`
	Detalles      []Detalle `json:"detalles,omitempty"`
}

// Detalle is one line of a Suficiencia.
type Detalle struct {
	ID            int64   `json:"id"`
	SuficienciaID int64   `json:"id_suficiencia"`
	Renglon       int     `json:"renglon"`
	Partida       string  `json:"partida"`
	Justificacion string  `json:"justificacion,omitempty"`
	Descripcion   string  `json:"descripcion,omitempty"`
	Importe       float64 `json:"importe"`
}

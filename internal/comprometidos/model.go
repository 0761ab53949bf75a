// Package comprometidos implements the second document of the budget chain:
// the Comprometido that commits a saved Suficiencia to a supplier order.
package comprometidos

import "time"

// Document states. A capture screen holds a pending document client-side;
// the server only ever stores saved ones.
const (
	EstadoPendiente = "PENDIENTE"
	EstadoGuardado  = "GUARDADO"
)

// Comprometido is a document header plus its ordered detail lines. Catalog
// keys are copied forward from the originating suficiencia at save time.
type Comprometido struct {
	ID             int64     `json:"id"`
	FolioNum       int64     `json:"folio_num"`
	NoComprometido string    `json:"no_comprometido"`
	SuficienciaID  int64     `json:"id_suficiencia"`
	Proyecto       string    `json:"proyecto"`
	DGeneral       string    `json:"dgeneral"`
	DAuxiliar      string    `json:"dauxiliar"`
	Fuente         string    `json:"fuente"`
	Programa       string    `json:"programa,omitempty"`
	Fecha          time.Time `json:"fecha"`
	Subtotal       float64   `json:"subtotal"`
	Estado         string    `json:"estado"`
	CreatedAt      time.Time `json:"created_at"`
	Detalles       []Detalle `json:"detalles,omitempty"`
}

// Detalle is one line of a Comprometido.
type Detalle struct {
	ID             int64   `json:"id"`
	ComprometidoID int64   `json:"id_comprometido"`
	Renglon        int     `json:"renglon"`
	Partida        string  `json:"partida"`
	Descripcion    string  `json:"descripcion,omitempty"`
	Importe        float64 `json:"importe"`
}

// Expanded joins the human readable catalog text onto a Comprometido so the
// consultation screen does not have to stitch catalogs itself.
type Expanded struct {
	Comprometido
	ProyectoNombre string `json:"proyecto_nombre"`
	DGeneralDesc   string `json:"dgeneral_desc"`
	DAuxiliarDesc  string `json:"dauxiliar_desc"`
	FuenteDesc     string `json:"fuente_desc"`
	ProgramaDesc   string `json:"programa_desc,omitempty"`
}

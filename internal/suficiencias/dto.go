package suficiencias

// CreateRequest is the payload accepted by POST /api/suficiencias.
type CreateRequest struct {
	Proyecto      string                `json:"proyecto" validate:"required"`
	DGeneral      string                `json:"dgeneral" validate:"required"`
	DAuxiliar     string                `json:"dauxiliar" validate:"required"`
	Fuente        string                `json:"fuente" validate:"required"`
	Programa      string                `json:"programa"`
	Fecha         string                `json:"fecha" validate:"required,datetime=2006-01-02"`
	Justificacion string                `json:"justificacion"`
	Detalles      []CreateDetalleRecord `json:"detalles" validate:"required,min=1,dive"`
}

// CreateDetalleRecord is one detail line inside a CreateRequest.
type CreateDetalleRecord struct {
	Renglon       int     `json:"renglon" validate:"gte=0"`
	Partida       string  `json:"partida" validate:"required"`
	Justificacion string  `json:"justificacion"`
	Descripcion   string  `json:"descripcion"`
	Importe       float64 `json:"importe" validate:"required,gt=0"`
}

// CreateResponse mirrors what the capture screen needs after a save.
type CreateResponse struct {
	ID            int64   `json:"id"`
	FolioNum      int64   `json:"folio_num"`
	NoSuficiencia string  `json:"no_suficiencia"`
	Subtotal      float64 `json:"subtotal"`
}

// NextFolioResponse carries the folio the next saved document would take.
type NextFolioResponse struct {
	FolioNum int64 `json:"folio_num"`
}

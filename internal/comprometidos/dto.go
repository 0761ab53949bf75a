package comprometidos

// CreateRequest is the payload accepted by POST /api/comprometido. Detalles
// may be omitted, in which case the suficiencia's lines are carried over
// unchanged.
type CreateRequest struct {
	SuficienciaID int64                 `json:"id_suficiencia" validate:"required,gt=0"`
	Fecha         string                `json:"fecha" validate:"required,datetime=2006-01-02"`
	Detalles      []CreateDetalleRecord `json:"detalles" validate:"omitempty,min=1,dive"`
}

// CreateDetalleRecord is one detail line inside a CreateRequest.
type CreateDetalleRecord struct {
	Renglon     int     `json:"renglon" validate:"gte=0"`
	Partida     string  `json:"partida" validate:"required"`
	Descripcion string  `json:"descripcion"`
	Importe     float64 `json:"importe" validate:"required,gt=0"`
}

// CreateResponse reports the saved (or previously saved) document. A second
// save against the same suficiencia returns the first document with
// AlreadyExists set instead of minting a duplicate.
type CreateResponse struct {
	ID             int64  `json:"id"`
	FolioNum       int64  `json:"folio_num"`
	NoComprometido string `json:"no_comprometido"`
	AlreadyExists  bool   `json:"already_exists"`
}

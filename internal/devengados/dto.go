package devengados

// SaveRequest is the payload accepted by POST /api/devengados. The first save
// against a comprometido creates the devengado; later saves replace its
// detail lines while the document is still within its vigencia month.
type SaveRequest struct {
	ComprometidoID int64               `json:"id_comprometido" validate:"required,gt=0"`
	Fecha          string              `json:"fecha" validate:"required,datetime=2006-01-02"`
	Detalles       []SaveDetalleRecord `json:"detalles" validate:"required,min=1,dive"`
}

// SaveDetalleRecord is one detail line inside a SaveRequest.
type SaveDetalleRecord struct {
	Renglon     int     `json:"renglon" validate:"gte=0"`
	Partida     string  `json:"partida" validate:"required"`
	Factura     string  `json:"factura"`
	Descripcion string  `json:"descripcion"`
	Importe     float64 `json:"importe" validate:"required,gt=0"`
}

// ConsultaResponse is what GET /api/devengados/comprometido/{id} returns: the
// committed amounts plus the devengado if one exists.
type ConsultaResponse struct {
	ComprometidoID    int64      `json:"id_comprometido"`
	NoComprometido    string     `json:"no_comprometido"`
	Proyecto          string     `json:"proyecto"`
	MontoComprometido float64    `json:"monto_comprometido"`
	Devengado         *Devengado `json:"devengado,omitempty"`
}

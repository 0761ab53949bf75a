// Package catalogos serves the reference data the budget documents point
// at: direcciones, fuentes, programas, partidas and proyectos.
package catalogos

import "errors"

// Item is one entry of a flat catalog.
type Item struct {
	Clave       string `json:"clave"`
	Descripcion string `json:"descripcion"`
}

// Proyecto carries the catalog keys the ledger inherits when it creates a
// budget line implicitly.
type Proyecto struct {
	Clave     string `json:"clave"`
	Nombre    string `json:"nombre"`
	DGeneral  string `json:"dgeneral"`
	DAuxiliar string `json:"dauxiliar"`
	Fuente    string `json:"fuente"`
	Programa  string `json:"programa,omitempty"`
}

// Catalog names accepted by the API. Table names are derived from this
// allowlist only; request input never reaches the SQL text.
const (
	CatalogDGeneral  = "dgeneral"
	CatalogDAuxiliar = "dauxiliar"
	CatalogFuentes   = "fuentes"
	CatalogProgramas = "programas"
	CatalogPartidas  = "partidas"
	CatalogProyectos = "proyectos"
)

// ErrUnknownCatalog indicates a catalog name outside the allowlist.
var ErrUnknownCatalog = errors.New("catalogos: unknown catalog")

// ErrProyectoNotFound indicates a missing proyecto row.
var ErrProyectoNotFound = errors.New("catalogos: proyecto not found")

var flatCatalogs = map[string]string{
	CatalogDGeneral:  "cat_dgeneral",
	CatalogDAuxiliar: "cat_dauxiliar",
	CatalogFuentes:   "cat_fuentes",
	CatalogProgramas: "cat_programas",
	CatalogPartidas:  "cat_partidas",
}

// Names lists every catalog exposed by the API.
func Names() []string {
	return []string{
		CatalogDGeneral,
		CatalogDAuxiliar,
		CatalogFuentes,
		CatalogProgramas,
		CatalogPartidas,
		CatalogProyectos,
	}
}

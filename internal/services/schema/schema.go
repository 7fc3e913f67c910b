// Package schema defines the canonical evidence fields the backend accepts
// and the per-kind rules for which fields an import must carry. Canonical
// field names are part of the wire contract and must not be translated.
package schema

// ImportKind identifies the kind of evidence file being imported
type ImportKind string

const (
	KindLPR     ImportKind = "LPR"
	KindGPS     ImportKind = "GPS"
	KindGPXKML  ImportKind = "GPX_KML"
	KindExterno ImportKind = "EXTERNO"
)

// Canonical field names as the backend expects them
const (
	FieldMatricula   = "Matricula"
	FieldFecha       = "Fecha"
	FieldHora        = "Hora"
	FieldIDLector    = "ID_Lector"
	FieldCarril      = "Carril"
	FieldSentido     = "Sentido"
	FieldVelocidad   = "Velocidad"
	FieldCoordenadaX = "Coordenada_X"
	FieldCoordenadaY = "Coordenada_Y"
	FieldAltitud     = "Altitud"
	FieldPrecision   = "Precision"
)

// CombinedFormatKey is the extra mapping key carrying the date/time layout
// when a single column holds both date and time.
const CombinedFormatKey = "formato_fecha_hora"

// Kinds lists the supported import kinds in display order
var Kinds = []ImportKind{KindLPR, KindGPS, KindGPXKML, KindExterno}

// requiredFields lists the fields that must be mapped before an import of
// each kind may proceed.
var requiredFields = map[ImportKind][]string{
	KindLPR:     {FieldMatricula, FieldFecha, FieldHora, FieldIDLector},
	KindGPS:     {FieldMatricula, FieldFecha, FieldHora},
	KindGPXKML:  {FieldFecha, FieldHora, FieldCoordenadaX, FieldCoordenadaY},
	KindExterno: {FieldMatricula},
}

// optionalFields lists the fields that may be mapped when the file has them
var optionalFields = map[ImportKind][]string{
	KindLPR:     {FieldCarril, FieldSentido, FieldVelocidad, FieldCoordenadaX, FieldCoordenadaY},
	KindGPS:     {FieldIDLector, FieldSentido, FieldVelocidad, FieldCoordenadaX, FieldCoordenadaY},
	KindGPXKML:  {FieldVelocidad, FieldAltitud, FieldPrecision},
	KindExterno: {},
}

// aliases maps each canonical field to the lowercase header spellings that
// auto-mapping recognizes. Order matters: earlier aliases win when a file
// offers several candidate headers.
var aliases = map[string][]string{
	FieldMatricula: {"matricula", "matrícula", "plate", "license", "licensenumber", "numplaca", "patente", "licenseplate"},
	FieldFecha:     {"fecha", "date", "fec"},
	FieldHora:      {"hora", "time", "timestamp"},
	FieldIDLector: {
		"id_lector", "idlector", "lector", "camara", "cámara", "device", "reader", "dispositivo",
		"camera", "cam", "cam_id", "device_id", "deviceid", "reader_id", "readerid",
		"sensor", "detector", "scanner", "scanner_id", "scannerid",
		"equipo", "equipment", "equipment_id", "equipmentid",
		"unidad", "unit", "unit_id", "unitid",
		"terminal", "terminal_id", "terminalid",
		"estacion", "station", "station_id", "stationid",
		"punto", "point", "point_id", "pointid",
		"nodo", "node", "node_id", "nodeid",
		"devicename", "device_name", "device-name", "devicename_id", "device_name_id",
		"nombre_dispositivo", "nombre_equipo", "nombre_lector", "nombre_camara",
	},
	FieldCoordenadaX: {"coordenada_x", "coord_x", "coordx", "longitud", "longitude", "lon", "x", "este", "easting"},
	FieldCoordenadaY: {"coordenada_y", "coord_y", "coordy", "latitud", "latitude", "lat", "y", "norte", "northing"},
	FieldVelocidad:   {"velocidad", "speed", "vel", "v", "kmh"},
	FieldCarril:      {"carril", "lane", "via"},
}

// CombinedFormats lists the accepted layouts for a single date+time column
var CombinedFormats = []string{
	"DD/MM/YYYY HH:mm:ss",
	"YYYY-MM-DD HH:mm:ss",
	"DD-MM-YYYY HH:mm:ss",
	"MM/DD/YYYY HH:mm:ss",
	"YYYY/MM/DD HH:mm:ss",
}

// DefaultCombinedFormat is preselected when the combined mode is enabled
const DefaultCombinedFormat = "DD/MM/YYYY HH:mm:ss"

// Valid reports whether k is a supported import kind
func (k ImportKind) Valid() bool {
	_, ok := requiredFields[k]
	return ok
}

// RequiredFields returns the fields that must be mapped for kind, in
// declaration order. The slice is a copy.
func RequiredFields(kind ImportKind) []string {
	return append([]string(nil), requiredFields[kind]...)
}

// OptionalFields returns the fields that may be mapped for kind, in
// declaration order. The slice is a copy.
func OptionalFields(kind ImportKind) []string {
	return append([]string(nil), optionalFields[kind]...)
}

// AllFields returns required fields followed by optional fields for kind
func AllFields(kind ImportKind) []string {
	return append(RequiredFields(kind), OptionalFields(kind)...)
}

// IsRequired reports whether field is required for kind
func IsRequired(kind ImportKind, field string) bool {
	for _, f := range requiredFields[kind] {
		if f == field {
			return true
		}
	}
	return false
}

// Aliases returns the recognized header spellings for a canonical field, in
// priority order. Returns nil for fields with no alias dictionary.
func Aliases(field string) []string {
	return append([]string(nil), aliases[field]...)
}

// ValidCombinedFormat reports whether layout is an accepted combined
// date/time format.
func ValidCombinedFormat(layout string) bool {
	for _, f := range CombinedFormats {
		if f == layout {
			return true
		}
	}
	return false
}

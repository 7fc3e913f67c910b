package tasks

// Stage is one step of a background task's pipeline as reported by the
// backend. Keys are part of the wire contract.
type Stage struct {
	Key   string
	Label string
}

// ImportStages are the steps of a file import, in execution order
var ImportStages = []Stage{
	{Key: "reading_file", Label: "Leyendo archivo..."},
	{Key: "parsing_mapping", Label: "Procesando mapeo de columnas..."},
	{Key: "preparing_data", Label: "Creando estructura de datos..."},
	{Key: "processing", Label: "Procesando registros..."},
}

// CrossStages are the steps of an external-data cross-reference
var CrossStages = []Stage{
	{Key: "analyzing", Label: "Analizando datos disponibles..."},
	{Key: "external_search", Label: "Buscando en datos externos..."},
	{Key: "lpr_search", Label: "Buscando en lecturas LPR..."},
	{Key: "optimizing", Label: "Optimizando cruce..."},
	{Key: "crossing", Label: "Cruzando datos..."},
	{Key: "formatting", Label: "Formateando resultados..."},
}

// AllStages returns import stages followed by cross-reference stages
func AllStages() []Stage {
	return append(append([]Stage(nil), ImportStages...), CrossStages...)
}

// StageIndex returns the position of a stage key in the combined pipeline,
// or -1 for unknown keys.
func StageIndex(key string) int {
	for i, s := range AllStages() {
		if s.Key == key {
			return i
		}
	}
	return -1
}

// StageLabel returns the display label for a stage key, falling back to the
// key itself.
func StageLabel(key string) string {
	for _, s := range AllStages() {
		if s.Key == key {
			return s.Label
		}
	}
	return key
}

// IsBulkStage reports whether a stage processes records in bulk and so
// reports meaningful sub-progress percentages.
func IsBulkStage(key string) bool {
	return key == "processing" || key == "preparing_data"
}

package crossref

import "strings"

// FriendlyError rewrites common backend failures into guidance the operator
// can act on. Unrecognized messages pass through untouched.
func FriendlyError(message string) string {
	switch {
	case strings.Contains(message, "timeout"), strings.Contains(message, "La tarea no existe"):
		return "El proceso de cruce tardó demasiado tiempo. Intente con filtros más específicos."
	case strings.Contains(message, "No se encontraron datos"):
		return "No se encontraron datos que coincidan con los filtros especificados."
	case strings.Contains(message, "Error interno del servidor"):
		return "Error interno del servidor. Contacte al administrador si el problema persiste."
	default:
		return message
	}
}

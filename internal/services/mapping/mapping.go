// Package mapping assigns file columns to canonical evidence fields. The
// resulting payload is sent verbatim to the backend alongside the file, so
// keys must stay canonical field names and values must stay raw headers.
package mapping

import (
	"fmt"
	"strings"

	"casetrack-desktop/internal/services/schema"
)

// Mapping holds the column assignments for one file of a given kind
type Mapping struct {
	kind           schema.ImportKind
	assignments    map[string]string // canonical field -> file header
	combined       bool
	combinedFormat string
}

// New creates an empty mapping for kind
func New(kind schema.ImportKind) (*Mapping, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unsupported import kind: %s", kind)
	}
	return &Mapping{
		kind:        kind,
		assignments: make(map[string]string),
	}, nil
}

// Kind returns the import kind this mapping was created for
func (m *Mapping) Kind() schema.ImportKind {
	return m.kind
}

// AutoMap fills the mapping from the file headers. Fields are visited in
// declaration order; for each field the first header whose lowercase form is
// a known alias and is not yet claimed wins. Existing assignments are
// discarded. Returns the number of fields that got a column.
func (m *Mapping) AutoMap(headers []string) int {
	m.assignments = make(map[string]string)
	claimed := make(map[string]bool)

	for _, field := range schema.AllFields(m.kind) {
		terms := schema.Aliases(field)
		if len(terms) == 0 {
			continue
		}
		for _, header := range headers {
			lower := strings.ToLower(header)
			if claimed[lower] {
				continue
			}
			if containsTerm(terms, lower) {
				m.assignments[field] = header
				claimed[lower] = true
				break
			}
		}
	}

	return len(m.assignments)
}

// AutoMapExact fills the mapping by exact header-to-field name matches. Used
// for synthesized workbooks whose headers already are canonical field names.
func (m *Mapping) AutoMapExact(headers []string) int {
	m.assignments = make(map[string]string)

	for _, field := range schema.AllFields(m.kind) {
		for _, header := range headers {
			if header == field {
				m.assignments[field] = header
				break
			}
		}
	}

	return len(m.assignments)
}

// Assign binds a canonical field to a file header, replacing any previous
// assignment for that field.
func (m *Mapping) Assign(field, header string) error {
	if !knownField(m.kind, field) {
		return fmt.Errorf("field %s does not apply to %s imports", field, m.kind)
	}
	if header == "" {
		return fmt.Errorf("header must not be empty, use Clear to unassign")
	}
	m.assignments[field] = header
	return nil
}

// Clear removes the assignment for a field. Unknown fields are a no-op.
func (m *Mapping) Clear(field string) {
	delete(m.assignments, field)
}

// Header returns the header assigned to a field, or "" when unassigned
func (m *Mapping) Header(field string) string {
	return m.assignments[field]
}

// SetCombinedFormat enables single-column date/time mode with the given
// layout. The layout must be one of the accepted formats.
func (m *Mapping) SetCombinedFormat(layout string) error {
	if !schema.ValidCombinedFormat(layout) {
		return fmt.Errorf("unsupported date/time format: %s", layout)
	}
	m.combined = true
	m.combinedFormat = layout
	return nil
}

// DisableCombined returns to separate date and time columns
func (m *Mapping) DisableCombined() {
	m.combined = false
	m.combinedFormat = ""
}

// Combined reports whether single-column date/time mode is active
func (m *Mapping) Combined() bool {
	return m.combined
}

// AssignCombined binds one header to both the date and time fields. Only
// valid while combined mode is active.
func (m *Mapping) AssignCombined(header string) error {
	if !m.combined {
		return fmt.Errorf("combined date/time mode is not enabled")
	}
	if err := m.Assign(schema.FieldFecha, header); err != nil {
		return err
	}
	return m.Assign(schema.FieldHora, header)
}

// MissingRequired lists the required fields that still have no column, in
// declaration order.
func (m *Mapping) MissingRequired() []string {
	var missing []string
	for _, field := range schema.RequiredFields(m.kind) {
		if m.assignments[field] == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// IsComplete reports whether every required field has a column
func (m *Mapping) IsComplete() bool {
	return len(m.MissingRequired()) == 0
}

// Payload builds the mapping object submitted to the backend: every assigned
// field plus the combined format key when that mode is active.
func (m *Mapping) Payload() map[string]string {
	payload := make(map[string]string, len(m.assignments)+1)
	for field, header := range m.assignments {
		payload[field] = header
	}
	if m.combined {
		payload[schema.CombinedFormatKey] = m.combinedFormat
	}
	return payload
}

func knownField(kind schema.ImportKind, field string) bool {
	for _, f := range schema.AllFields(kind) {
		if f == field {
			return true
		}
	}
	return false
}

func containsTerm(terms []string, candidate string) bool {
	for _, t := range terms {
		if t == candidate {
			return true
		}
	}
	return false
}

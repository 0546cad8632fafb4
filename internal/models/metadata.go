package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata field names as they appear on the wire
const (
	FieldBrand       = "brand"
	FieldColor       = "color"
	FieldMaterial    = "material"
	FieldShape       = "shape"
	FieldModifier    = "modifier"
	FieldComment     = "comment"
	FieldLabelerName = "labeler_name"
	FieldPickPoint   = "pick_point"
	FieldEmbeddingID = "embedding_id"
)

// EditableFields lists the named fields sent to the record store on update, in form order.
var EditableFields = []string{
	FieldBrand,
	FieldColor,
	FieldMaterial,
	FieldShape,
	FieldComment,
	FieldModifier,
	FieldLabelerName,
	FieldPickPoint,
}

var recordFields = append(append([]string{}, EditableFields...), FieldEmbeddingID)

// Metadata is one object's descriptive record. Absent keys read as "".
// Keys this type does not model are preserved verbatim in Extra.
type Metadata struct {
	Brand       string
	Color       string
	Material    string
	Shape       string
	Modifier    string // comma-separated tag set
	Comment     string
	LabelerName string
	PickPoint   string // see package pickpoint
	EmbeddingID string // record store identifier; empty when not persisted

	Extra map[string]json.RawMessage
}

func (m *Metadata) field(name string) *string {
	switch name {
	case FieldBrand:
		return &m.Brand
	case FieldColor:
		return &m.Color
	case FieldMaterial:
		return &m.Material
	case FieldShape:
		return &m.Shape
	case FieldModifier:
		return &m.Modifier
	case FieldComment:
		return &m.Comment
	case FieldLabelerName:
		return &m.LabelerName
	case FieldPickPoint:
		return &m.PickPoint
	case FieldEmbeddingID:
		return &m.EmbeddingID
	default:
		return nil
	}
}

// Get returns a field's value; passthrough keys are flattened to text.
func (m Metadata) Get(name string) string {
	if p := m.field(name); p != nil {
		return *p
	}
	if raw, ok := m.Extra[name]; ok {
		return flatten(raw)
	}
	return ""
}

// Set replaces one field. Unknown names are stored as JSON strings in Extra.
func (m *Metadata) Set(name, value string) {
	if p := m.field(name); p != nil {
		*p = value
		return
	}
	if m.Extra == nil {
		m.Extra = make(map[string]json.RawMessage)
	}
	encoded, _ := json.Marshal(value)
	m.Extra[name] = encoded
}

// IsEmpty reports whether no field carries a value.
func (m Metadata) IsEmpty() bool {
	for _, name := range recordFields {
		if m.Get(name) != "" {
			return false
		}
	}
	for _, raw := range m.Extra {
		if flatten(raw) != "" {
			return false
		}
	}
	return true
}

// HasRecord reports whether the record is presumed persisted in the record store.
func (m Metadata) HasRecord() bool {
	return m.EmbeddingID != ""
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Equal compares every field, including passthrough keys.
func (m Metadata) Equal(other Metadata) bool {
	if m.Brand != other.Brand ||
		m.Color != other.Color ||
		m.Material != other.Material ||
		m.Shape != other.Shape ||
		m.Modifier != other.Modifier ||
		m.Comment != other.Comment ||
		m.LabelerName != other.LabelerName ||
		m.PickPoint != other.PickPoint ||
		m.EmbeddingID != other.EmbeddingID {
		return false
	}
	if len(m.Extra) != len(other.Extra) {
		return false
	}
	for k, v := range m.Extra {
		ov, ok := other.Extra[k]
		if !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return true
}

// MarshalJSON writes named fields that carry a value plus every passthrough key.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+len(EditableFields)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	for _, name := range recordFields {
		value := m.Get(name)
		if value == "" {
			// a passthrough key never shadows a named field
			delete(out, name)
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		out[name] = encoded
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads an open key/value object. Non-string values of named
// fields are flattened to text; arrays are joined with ",".
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("metadata must be a JSON object: %w", err)
	}

	for k, v := range raw {
		if p := m.field(k); p != nil {
			*p = flatten(v)
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}

func flatten(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, flatten(item))
			}
			return strings.Join(parts, ",")
		}
	}
	return string(trimmed)
}

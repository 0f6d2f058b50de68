package resource

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/kroma-labs/apiwrap-go/apiclient"
)

// CustomFieldsKey is the key custom fields are stored under in Values.
const CustomFieldsKey = "custom_fields"

// Schema lists the fields a model accepts.
type Schema struct {
	// Fields are the built-in fields, stored at the top level of Values.
	Fields []string
	// Custom are named custom fields, stored under CustomFieldsKey.
	Custom []string
}

// CustomField is a custom field entry added by id. Values holds
// CustomFieldValue items for AddCustomField and the raw selected values for
// AddCustomMultiField.
type CustomField struct {
	ID     int   `json:"id"`
	Values []any `json:"values"`
}

// CustomFieldValue is one value of a CustomField. Enum and Subtype are
// omitted when nil.
type CustomFieldValue struct {
	Value   any `json:"value"`
	Enum    any `json:"enum,omitempty"`
	Subtype any `json:"subtype,omitempty"`
}

// Getter derives the value returned by Field from the stored one, which is
// nil when the field is unset.
type Getter func(stored any) any

// Setter converts a value before SetField stores it.
type Setter func(value any) (any, error)

// Model is the base for resource models: a Request plus a set of named
// fields. Concrete models embed *Model and add their API calls.
//
//	type Order struct{ *resource.Model }
//
//	func NewOrder(req *apiclient.Request) any {
//	    return &Order{resource.NewModel(req, "order", resource.Schema{
//	        Fields: []string{"id", "name"},
//	    })}
//	}
type Model struct {
	*apiclient.Request

	name   string
	fields map[string]struct{}
	custom map[string]struct{}

	mu           sync.RWMutex
	values       map[string]any
	customValues map[string]any
	customList   []CustomField
	getters      map[string]Getter
	setters      map[string]Setter
}

// NewModel creates a Model named name that runs its calls through req.
func NewModel(req *apiclient.Request, name string, schema Schema) *Model {
	m := &Model{
		Request:      req,
		name:         name,
		fields:       make(map[string]struct{}, len(schema.Fields)),
		custom:       make(map[string]struct{}, len(schema.Custom)),
		values:       make(map[string]any),
		customValues: make(map[string]any),
		getters:      make(map[string]Getter),
		setters:      make(map[string]Setter),
	}
	for _, f := range schema.Fields {
		m.fields[f] = struct{}{}
	}
	for _, f := range schema.Custom {
		m.custom[f] = struct{}{}
	}
	return m
}

// String returns the model name.
func (m *Model) String() string {
	return m.name
}

// OnGet installs a getter hook for field.
func (m *Model) OnGet(field string, g Getter) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getters[field] = g
	return m
}

// OnSet installs a setter hook for field.
func (m *Model) OnSet(field string, s Setter) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setters[field] = s
	return m
}

// HasField reports whether field is a built-in or named custom field.
func (m *Model) HasField(field string) bool {
	if _, ok := m.fields[field]; ok {
		return true
	}
	_, ok := m.custom[field]
	return ok
}

// Field returns the value of field, or nil if it is unset.
func (m *Model) Field(field string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.values[field]
	if !ok {
		stored = m.customValues[field]
	}
	if g, ok := m.getters[field]; ok {
		return g(stored)
	}
	return stored
}

// SetField stores value in field. Unknown fields are rejected with a
// *apiclient.ValidationError.
func (m *Model) SetField(field string, value any) error {
	if !m.HasField(field) {
		return &apiclient.ValidationError{Field: field, Reason: "parameter not exists"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.setters[field]; ok {
		v, err := s(value)
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", m.name, field, err)
		}
		value = v
	}

	if _, ok := m.fields[field]; ok {
		m.values[field] = value
		return nil
	}
	m.customValues[field] = value
	return nil
}

// UnsetField removes the stored value of field.
func (m *Model) UnsetField(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.values[field]; ok {
		delete(m.values, field)
		return
	}
	delete(m.customValues, field)
}

// Values returns a copy of the stored values. Custom fields are nested
// under CustomFieldsKey: a list of CustomField when only id entries were
// added, a map when only named custom fields were set, and a map keyed by
// list position and field name when both were.
func (m *Model) Values() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := maps.Clone(m.values)
	switch {
	case len(m.customList) > 0 && len(m.customValues) > 0:
		mixed := maps.Clone(m.customValues)
		for i, f := range m.customList {
			mixed[strconv.Itoa(i)] = f
		}
		out[CustomFieldsKey] = mixed
	case len(m.customList) > 0:
		out[CustomFieldsKey] = slices.Clone(m.customList)
	case len(m.customValues) > 0:
		out[CustomFieldsKey] = maps.Clone(m.customValues)
	}
	return out
}

// AddCustomField appends a custom field entry for id. Pass nil for enum and
// subtype to leave them out. A value of type []CustomFieldValue adds several
// values at once; enum is then ignored and subtype, when set, applies to
// each of them.
func (m *Model) AddCustomField(id int, value, enum, subtype any) *Model {
	var values []CustomFieldValue
	if multi, ok := value.([]CustomFieldValue); ok {
		values = slices.Clone(multi)
	} else {
		values = []CustomFieldValue{{Value: value, Enum: enum}}
	}

	field := CustomField{ID: id, Values: make([]any, 0, len(values))}
	for _, v := range values {
		if subtype != nil {
			v.Subtype = subtype
		}
		field.Values = append(field.Values, v)
	}
	return m.addCustom(field)
}

// AddCustomMultiField appends a multi-select custom field entry for id.
// The values are sent as given.
func (m *Model) AddCustomMultiField(id int, values ...any) *Model {
	return m.addCustom(CustomField{ID: id, Values: slices.Clone(values)})
}

// CustomFields returns the custom field entries added by id, in the order
// they were added. Repeated ids are kept.
func (m *Model) CustomFields() []CustomField {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.customList)
}

func (m *Model) addCustom(field CustomField) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customList = append(m.customList, field)
	return m
}

// CheckID validates a resource id: it must be a positive integer, given
// as an integer, an integral float or a decimal string.
func CheckID(id any) (int64, error) {
	invalid := &apiclient.ValidationError{Field: "id", Reason: "must be integer and positive"}

	var n int64
	switch v := id.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, invalid
		}
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, invalid
		}
		n = int64(v)
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 {
			return 0, invalid
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, invalid
		}
		n = parsed
	default:
		return 0, invalid
	}

	if n < 1 {
		return 0, invalid
	}
	return n, nil
}

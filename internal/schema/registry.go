package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Definition is everything the pipeline needs to know about one entity's columns.
type Definition struct {
	Type      EntityType
	SheetName string      // Template worksheet name
	Fields    []FieldSpec // Columns in template order
	Example   []string    // Worked example, parallel to Fields
}

// Columns returns the definition's column names in template order.
func (d Definition) Columns() []string {
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

var (
	registry   = make(map[EntityType]Definition)
	registryMu sync.RWMutex
)

func init() {
	Register(Definition{
		Type:      Crew,
		SheetName: "船员导入模板",
		Fields:    CrewFieldSpecs,
		Example:   crewExample,
	})
	Register(Definition{
		Type:      Certificate,
		SheetName: "证书导入模板",
		Fields:    CertificateFieldSpecs,
		Example:   certificateExample,
	})
}

// Register adds a definition to the registry.
// Panics if the type is already registered or the example does not line up with the fields.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Type]; exists {
		panic(fmt.Sprintf("entity already registered: %s", def.Type))
	}
	if len(def.Example) != len(def.Fields) {
		panic(fmt.Sprintf("entity %s: example has %d values for %d fields", def.Type, len(def.Example), len(def.Fields)))
	}

	registry[def.Type] = def
}

// Get returns the definition for an entity type.
func Get(entity EntityType) (Definition, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[entity]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownEntity, string(entity))
	}
	return def, nil
}

// FieldsFor returns the ordered field specs for an entity type.
func FieldsFor(entity EntityType) ([]FieldSpec, error) {
	def, err := Get(entity)
	if err != nil {
		return nil, err
	}
	out := make([]FieldSpec, len(def.Fields))
	copy(out, def.Fields)
	return out, nil
}

// ExampleRow returns the template's worked example as a decoded row.
func ExampleRow(entity EntityType) (Row, error) {
	def, err := Get(entity)
	if err != nil {
		return Row{}, err
	}
	return NewRow(1, def.Columns(), def.Example), nil
}

// All returns every registered definition sorted by type.
func All() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

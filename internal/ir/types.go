package ir

// DefinitionKey uniquely names one definition within a manifest.
type DefinitionKey string

// DefinitionSource is one named definition as produced by the parser on
// every compile attempt.
type DefinitionSource struct {
	Key          DefinitionKey   `json:"key"`
	Text         string          `json:"text"`         // Source fragment, normalized by the consumer
	Dependencies []DefinitionKey `json:"dependencies"` // Declared order is preserved
}

// Manifest is the parser's view of a whole source document.
//
// Definitions are ordered so that every dependency that is itself defined
// appears before its dependents. Consumers rely on this order and do not sort.
type Manifest struct {
	Definitions []DefinitionSource `json:"definitions"`
	Operations  []string           `json:"operations"` // Fragments, concatenated before evaluation
}

// Keys returns the definition keys in manifest order.
func (m *Manifest) Keys() []DefinitionKey {
	keys := make([]DefinitionKey, len(m.Definitions))
	for i, def := range m.Definitions {
		keys[i] = def.Key
	}
	return keys
}

// BuiltDefinition is the cached result of building one definition.
type BuiltDefinition struct {
	Key     DefinitionKey `json:"key"`
	Text    string        `json:"text"` // Normalized text the graph was built from
	Graph   *Graph        `json:"graph"`
	Rebuilt bool          `json:"rebuilt"` // True iff Graph was produced by the cycle that made this build
}

// Build is one generation of built definitions.
type Build map[DefinitionKey]BuiltDefinition

// RebuiltKeys returns the keys marked rebuilt, in the given order.
// Keys absent from the build are ignored.
func (b Build) RebuiltKeys(order []DefinitionKey) []DefinitionKey {
	return b.filter(order, true)
}

// ReusedKeys returns the keys reused from a previous build, in the given order.
func (b Build) ReusedKeys(order []DefinitionKey) []DefinitionKey {
	return b.filter(order, false)
}

func (b Build) filter(order []DefinitionKey, rebuilt bool) []DefinitionKey {
	keys := []DefinitionKey{}
	for _, key := range order {
		entry, ok := b[key]
		if ok && entry.Rebuilt == rebuilt {
			keys = append(keys, key)
		}
	}
	return keys
}

// SymbolTable maps definition keys to their compiled graphs.
// It is assembled incrementally during a build pass.
type SymbolTable map[DefinitionKey]*Graph

// Clone returns a shallow copy; graphs are shared.
func (t SymbolTable) Clone() SymbolTable {
	out := make(SymbolTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// OperationResult is the outcome of one evaluated operation.
type OperationResult struct {
	Input  string `json:"input"`
	Passed bool   `json:"passed"`
}

// RenderThreshold is the node count at or above which a graph is not rendered.
const RenderThreshold = 100

// RenderJob asks the renderer to lay out one compiled graph.
type RenderJob struct {
	Key   DefinitionKey `json:"key"`
	Graph *Graph        `json:"graph"`
}

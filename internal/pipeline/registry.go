package pipeline

import (
	"fmt"

	"substore-client/internal/domain"
)

// OperatorType describes one kind of node action a user can add to a
// process chain.
type OperatorType struct {
	Type        string
	DisplayName string
	DefaultArgs map[string]any
}

// Registry is the ordered set of operator types a pipeline accepts.
// Insertion refers to types by their position in the registry.
type Registry struct {
	types []OperatorType
	index map[string]int
}

func NewRegistry(types ...OperatorType) (*Registry, error) {
	r := &Registry{
		types: make([]OperatorType, 0, len(types)),
		index: make(map[string]int, len(types)),
	}
	for _, t := range types {
		if t.Type == "" {
			return nil, fmt.Errorf("operator type cannot be empty")
		}
		if t.Type == domain.QuickSettingType {
			return nil, fmt.Errorf("operator type %q is reserved", t.Type)
		}
		if _, exists := r.index[t.Type]; exists {
			return nil, fmt.Errorf("duplicate operator type: %s", t.Type)
		}
		if t.DisplayName == "" {
			t.DisplayName = t.Type
		}
		r.index[t.Type] = len(r.types)
		r.types = append(r.types, t)
	}
	return r, nil
}

var defaultTypes = []OperatorType{
	{Type: "Flag Operator", DisplayName: "Flag", DefaultArgs: map[string]any{"mode": "add"}},
	{Type: "Regex Filter", DisplayName: "RegexFilter", DefaultArgs: map[string]any{"regex": []any{}, "keep": true}},
	{Type: "Type Filter", DisplayName: "TypeFilter", DefaultArgs: map[string]any{"types": []any{}}},
	{Type: "Region Filter", DisplayName: "RegionFilter", DefaultArgs: map[string]any{"regions": []any{}}},
	{Type: "Regex Rename Operator", DisplayName: "RegexRename", DefaultArgs: map[string]any{"regex": []any{}}},
	{Type: "Handle Duplicate Operator", DisplayName: "HandleDuplicate", DefaultArgs: map[string]any{
		"action":   "rename",
		"position": "back",
		"template": "0 1 2 3 4 5 6 7 8 9",
		"link":     "-",
	}},
	{Type: "Regex Sort Operator", DisplayName: "RegexSortOperator", DefaultArgs: map[string]any{"regex": []any{}}},
	{Type: "Sort Operator", DisplayName: "Sort", DefaultArgs: map[string]any{"order": "asc"}},
	{Type: "Resolve Domain Operator", DisplayName: "ResolveDomain", DefaultArgs: map[string]any{"provider": "Google"}},
	{Type: "Regex Delete Operator", DisplayName: "RegexDeleteOperator", DefaultArgs: map[string]any{"regex": []any{}}},
}

// DefaultRegistry returns the node actions supported by the server.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultTypes...)
	if err != nil {
		panic(fmt.Sprintf("invalid default registry: %v", err))
	}
	return r
}

func (r *Registry) Types() []OperatorType {
	out := make([]OperatorType, len(r.types))
	copy(out, r.types)
	return out
}

func (r *Registry) Len() int {
	return len(r.types)
}

func (r *Registry) At(i int) (OperatorType, bool) {
	if i < 0 || i >= len(r.types) {
		return OperatorType{}, false
	}
	return r.types[i], true
}

// Index returns the position of an operator type, matching either its
// type string or its display name.
func (r *Registry) Index(name string) (int, bool) {
	if i, ok := r.index[name]; ok {
		return i, true
	}
	for i, t := range r.types {
		if t.DisplayName == name {
			return i, true
		}
	}
	return -1, false
}

func (r *Registry) Has(typ string) bool {
	_, ok := r.index[typ]
	return ok
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if list, ok := v.([]any); ok {
			v = append([]any{}, list...)
		}
		out[k] = v
	}
	return out
}

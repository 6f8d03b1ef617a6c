package domain

import "fmt"

// Node is one proxy node as returned by the preview endpoint. The
// server owns the schema, so nodes are kept as generic records.
type Node map[string]any

// ID returns the node id normalized to a string, and false when the
// node carries no id.
func (n Node) ID() (string, bool) {
	v, ok := n["id"]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id)), true
		}
		return fmt.Sprintf("%g", id), true
	default:
		return fmt.Sprint(id), true
	}
}

// Name returns the node's display name, if any.
func (n Node) Name() string {
	if s, ok := n["name"].(string); ok {
		return s
	}
	return ""
}

type PreviewResult struct {
	Original  []Node `json:"original"`
	Processed []Node `json:"processed"`
}

package domain

// QuickSettingType is the type of the synthetic operator that carries
// the quick-setting toggles. It is always the first element of a
// non-empty chain.
const QuickSettingType = "Quick Setting Operator"

type Operator struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// Clone returns a copy whose Args map is not shared with o.
func (o Operator) Clone() Operator {
	args := make(map[string]any, len(o.Args))
	for k, v := range o.Args {
		args[k] = v
	}
	return Operator{Type: o.Type, Args: args}
}

type ProcessChain []Operator

// QuickSetting returns the index of the first quick-setting operator,
// or -1 when the chain has none.
func (c ProcessChain) QuickSetting() int {
	for i, op := range c {
		if op.Type == QuickSettingType {
			return i
		}
	}
	return -1
}

package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"substore-client/internal/domain"
)

// Row is one editable operator together with its stable id.
type Row struct {
	ID       string
	Operator domain.Operator
}

// Pipeline is the editable form of a process chain. The quick-setting
// operator is held apart from the user operators and always
// materializes at the head of the chain.
type Pipeline struct {
	registry *Registry
	quick    QuickSettings
	order    []string
	ops      map[string]domain.Operator
	newID    func() string
	guard    func() error
	changed  bool
}

type Option func(*Pipeline)

// WithIDGenerator replaces the uuid source for row ids.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) {
		p.newID = gen
	}
}

// WithGuard installs a check run before every mutation. A non-nil
// error rejects the mutation and is returned as is.
func WithGuard(guard func() error) Option {
	return func(p *Pipeline) {
		p.guard = guard
	}
}

func New(registry *Registry, opts ...Option) *Pipeline {
	if registry == nil {
		registry = DefaultRegistry()
	}
	p := &Pipeline{
		registry: registry,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.Initialize(nil)
	return p
}

func (p *Pipeline) Registry() *Registry {
	return p.registry
}

func (p *Pipeline) checkGuard() error {
	if p.guard == nil {
		return nil
	}
	return p.guard()
}

// Initialize loads a raw chain. The first quick-setting operator seeds
// the toggles; any further quick-setting entries are discarded. Every
// other operator becomes a row with a fresh id, in chain order.
func (p *Pipeline) Initialize(raw domain.ProcessChain) {
	p.quick = DefaultQuickSettings()
	p.order = make([]string, 0, len(raw))
	p.ops = make(map[string]domain.Operator, len(raw))
	p.changed = false

	if i := raw.QuickSetting(); i >= 0 {
		p.quick = quickSettingsFrom(raw[i].Args)
	}
	for _, op := range raw {
		if op.Type == domain.QuickSettingType {
			continue
		}
		id := p.newID()
		p.order = append(p.order, id)
		p.ops[id] = op.Clone()
	}
}

// Changed reports whether any mutation happened since Initialize.
func (p *Pipeline) Changed() bool {
	return p.changed
}

// MarkClean resets Changed without touching rows or their ids.
func (p *Pipeline) MarkClean() {
	p.changed = false
}

func (p *Pipeline) QuickSettings() QuickSettings {
	return p.quick.clone()
}

// SetQuickSetting stores value, given either as a stored value or as
// its label, under key.
func (p *Pipeline) SetQuickSetting(key, value string) error {
	if err := p.checkGuard(); err != nil {
		return err
	}
	v, err := normalize(key, value)
	if err != nil {
		return err
	}
	if p.quick[key] != v {
		p.quick[key] = v
		p.changed = true
	}
	return nil
}

// InsertOperator appends a new operator of the registry type at
// typeIndex. Args are merged over the type's defaults.
func (p *Pipeline) InsertOperator(typeIndex int, args map[string]any) (string, error) {
	if err := p.checkGuard(); err != nil {
		return "", err
	}
	t, ok := p.registry.At(typeIndex)
	if !ok {
		return "", domain.NewValidationError("type", "registry",
			fmt.Sprintf("operator type index %d out of range [0, %d)", typeIndex, p.registry.Len()))
	}

	merged := cloneArgs(t.DefaultArgs)
	for k, v := range args {
		merged[k] = v
	}

	id := p.newID()
	p.order = append(p.order, id)
	p.ops[id] = domain.Operator{Type: t.Type, Args: merged}
	p.changed = true
	return id, nil
}

func (p *Pipeline) RemoveOperator(id string) error {
	if err := p.checkGuard(); err != nil {
		return err
	}
	if _, ok := p.ops[id]; !ok {
		return fmt.Errorf("operator %s not found", id)
	}
	delete(p.ops, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.changed = true
	return nil
}

// Reorder replaces the row order. ids must be a permutation of the
// current row ids.
func (p *Pipeline) Reorder(ids []string) error {
	if err := p.checkGuard(); err != nil {
		return err
	}
	if len(ids) != len(p.order) {
		return fmt.Errorf("reorder expects %d ids, got %d", len(p.order), len(ids))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := p.ops[id]; !ok {
			return fmt.Errorf("operator %s not found", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("operator %s listed twice", id)
		}
		seen[id] = struct{}{}
	}
	p.order = append([]string(nil), ids...)
	p.changed = true
	return nil
}

// Move shifts the row with id by delta positions, clamped to the ends.
func (p *Pipeline) Move(id string, delta int) error {
	if err := p.checkGuard(); err != nil {
		return err
	}
	from := -1
	for i, existing := range p.order {
		if existing == id {
			from = i
			break
		}
	}
	if from < 0 {
		return fmt.Errorf("operator %s not found", id)
	}
	to := min(max(from+delta, 0), len(p.order)-1)
	if to == from {
		return nil
	}
	ids := append([]string(nil), p.order...)
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{id}, ids[to:]...)...)
	return p.Reorder(ids)
}

func (p *Pipeline) SetOperatorArg(id, key string, value any) error {
	if err := p.checkGuard(); err != nil {
		return err
	}
	op, ok := p.ops[id]
	if !ok {
		return fmt.Errorf("operator %s not found", id)
	}
	if op.Args == nil {
		op.Args = make(map[string]any)
	}
	op.Args[key] = value
	p.ops[id] = op
	p.changed = true
	return nil
}

// Rows returns the user operators in their current order.
func (p *Pipeline) Rows() []Row {
	rows := make([]Row, 0, len(p.order))
	for _, id := range p.order {
		rows = append(rows, Row{ID: id, Operator: p.ops[id].Clone()})
	}
	return rows
}

func (p *Pipeline) Len() int {
	return len(p.order)
}

// Materialize renders the chain sent to the server: the quick-setting
// operator first, then every row in order. It fails when a row's type is
// unknown to the registry.
func (p *Pipeline) Materialize() (domain.ProcessChain, error) {
	chain := make(domain.ProcessChain, 0, len(p.order)+1)
	chain = append(chain, p.quick.Operator())
	for i, id := range p.order {
		op := p.ops[id]
		if !p.registry.Has(op.Type) {
			return nil, domain.NewValidationError("process", "registry",
				fmt.Sprintf("unsupported operator type %q at position %d", op.Type, i+1))
		}
		chain = append(chain, op.Clone())
	}
	return chain, nil
}

package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"substore-client/internal/domain"
	"substore-client/internal/pipeline"
)

// ErrTaskInProgress is returned by Save while another save of the same
// editor is in flight.
var ErrTaskInProgress = errors.New("task in progress: please wait for other tasks to be completed")

type State int32

const (
	StateLoading State = iota
	StateEditing
	StateSaving
	StateSaved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	case StateSaved:
		return "saved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Saver persists an entity. *api.Client satisfies it.
type Saver interface {
	Create(ctx context.Context, kind domain.Kind, body any) error
	Update(ctx context.Context, kind domain.Kind, name string, body any) error
}

// Session is the kind-agnostic view of an Editor.
type Session interface {
	Kind() domain.Kind
	Name() string
	IsNew() bool
	Dirty() bool
	State() State
	Err() error
	Fields() []Field
	Values() map[string]string
	Set(key, value string) error
	// Pipeline is nil for kinds without a process chain.
	Pipeline() *pipeline.Pipeline
	Edit(ctx context.Context, form Form) error
	Save(ctx context.Context) error
}

var (
	_ Session = (*Editor[domain.Subscription])(nil)
	_ Session = (*Editor[domain.Collection])(nil)
	_ Session = (*Editor[domain.Artifact])(nil)
)

type options struct {
	registry *pipeline.Registry
	onSaved  func(ctx context.Context) error
	logger   *zap.Logger
	metrics  domain.MetricsCollector
}

type Option func(*options)

func WithRegistry(registry *pipeline.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// OnSaved sets the completion run after a successful save, once the
// save lock has been released.
func OnSaved(fn func(ctx context.Context) error) Option {
	return func(o *options) {
		o.onSaved = fn
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(metrics domain.MetricsCollector) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// Editor holds the working copy of one entity between load and save.
type Editor[T any] struct {
	capability Capability[T]
	saver      Saver
	opts       options
	logger     *zap.Logger
	pipeline   *pipeline.Pipeline

	saving atomic.Bool

	mu       sync.Mutex
	entity   T
	original string
	isNew    bool
	dirty    bool
	state    State
	err      error
}

// New opens an editor on a fresh entity built from the capability's
// defaults.
func New[T any](capability Capability[T], saver Saver, opts ...Option) *Editor[T] {
	return open(capability, saver, capability.Defaults(), true, opts)
}

// Load opens an editor on an existing entity. Saving updates the entity
// stored under its current name, even after a rename.
func Load[T any](capability Capability[T], saver Saver, entity T, opts ...Option) *Editor[T] {
	return open(capability, saver, entity, false, opts)
}

func open[T any](capability Capability[T], saver Saver, entity T, isNew bool, opts []Option) *Editor[T] {
	o := options{
		logger:  zap.NewNop(),
		metrics: domain.NopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Editor[T]{
		capability: capability,
		saver:      saver,
		opts:       o,
		entity:     entity,
		isNew:      isNew,
		state:      StateLoading,
	}
	e.original = capability.Name(entity)
	e.logger = o.logger.With(
		zap.String("component", "editor"),
		zap.String("kind", capability.Kind.String()),
	)

	if capability.Process != nil {
		e.pipeline = pipeline.New(o.registry, pipeline.WithGuard(e.checkIdle))
		e.pipeline.Initialize(*capability.Process(&e.entity))
	}
	e.state = StateEditing
	return e
}

func (e *Editor[T]) Kind() domain.Kind {
	return e.capability.Kind
}

func (e *Editor[T]) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capability.Name(e.entity)
}

// OriginalName is the name the entity is stored under remotely, empty
// for new entities.
func (e *Editor[T]) OriginalName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isNew {
		return ""
	}
	return e.original
}

func (e *Editor[T]) IsNew() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isNew
}

func (e *Editor[T]) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty || (e.pipeline != nil && e.pipeline.Changed())
}

func (e *Editor[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error of the last failed save.
func (e *Editor[T]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Entity returns a copy of the working entity.
func (e *Editor[T]) Entity() T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entity
}

// Pipeline returns the process rows of the entity. Its mutations are
// rejected with ErrTaskInProgress while a save is in flight.
func (e *Editor[T]) Pipeline() *pipeline.Pipeline {
	return e.pipeline
}

func (e *Editor[T]) checkIdle() error {
	if e.saving.Load() {
		return ErrTaskInProgress
	}
	return nil
}

func (e *Editor[T]) Fields() []Field {
	out := make([]Field, len(e.capability.Fields))
	copy(out, e.capability.Fields)
	return out
}

func (e *Editor[T]) Values() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	values := make(map[string]string, len(e.capability.Fields))
	for _, f := range e.capability.Fields {
		values[f.Key] = e.capability.Get(&e.entity, f.Key)
	}
	return values
}

// Set writes one generic field. It is rejected while a save is in
// flight.
func (e *Editor[T]) Set(key, value string) error {
	if err := e.checkIdle(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capability.Get(&e.entity, key) == value {
		return nil
	}
	if err := e.capability.Set(&e.entity, key, value); err != nil {
		return err
	}
	e.dirty = true
	if e.state == StateFailed || e.state == StateSaved {
		e.state = StateEditing
	}
	return nil
}

// Save materializes the process chain, validates the working copy and
// persists it with exactly one request.
func (e *Editor[T]) Save(ctx context.Context) error {
	if !e.saving.CompareAndSwap(false, true) {
		return ErrTaskInProgress
	}

	body, name, err := e.prepare()
	if err != nil {
		e.saving.Store(false)
		e.opts.metrics.RecordSave(e.capability.Kind, err)
		e.logger.Warn("Validation failed", zap.String("name", name), zap.Error(err))
		return err
	}

	e.mu.Lock()
	isNew, original := e.isNew, e.original
	e.mu.Unlock()

	if isNew {
		err = e.saver.Create(ctx, e.capability.Kind, body)
	} else {
		err = e.saver.Update(ctx, e.capability.Kind, original, body)
	}
	e.opts.metrics.RecordSave(e.capability.Kind, err)

	e.mu.Lock()
	if err != nil {
		e.state = StateFailed
		e.err = err
	} else {
		e.state = StateSaved
		e.err = nil
		e.isNew = false
		e.dirty = false
		e.original = name
		if e.pipeline != nil {
			e.pipeline.MarkClean()
		}
	}
	e.mu.Unlock()
	e.saving.Store(false)

	if err != nil {
		e.logger.Error("Save failed", zap.String("name", name), zap.Error(err))
		return err
	}

	e.logger.Info("Saved", zap.String("name", name), zap.Bool("created", isNew))
	if e.opts.onSaved != nil {
		if cerr := e.opts.onSaved(ctx); cerr != nil {
			e.logger.Warn("Completion after save failed", zap.Error(cerr))
		}
	}
	return nil
}

// prepare replaces the working copy's process with the materialized
// chain and returns the validated wire body.
func (e *Editor[T]) prepare() (any, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := e.capability.Name(e.entity)
	if e.pipeline != nil {
		chain, err := e.pipeline.Materialize()
		if err != nil {
			e.state = StateEditing
			return nil, name, err
		}
		*e.capability.Process(&e.entity) = chain
	}

	if err := e.capability.Validate(&e.entity); err != nil {
		e.state = StateEditing
		return nil, name, err
	}

	e.state = StateSaving
	return e.capability.ToWire(e.entity), name, nil
}

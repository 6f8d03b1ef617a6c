package editor

import (
	"context"
	"encoding/json"
	"fmt"

	"substore-client/internal/domain"
)

// Form presents fields with their current values and returns the edited
// values. Keys missing from the result are left unchanged.
type Form interface {
	Present(ctx context.Context, fields []Field, values map[string]string) (map[string]string, error)
}

// FormFunc adapts a function to Form.
type FormFunc func(ctx context.Context, fields []Field, values map[string]string) (map[string]string, error)

func (f FormFunc) Present(ctx context.Context, fields []Field, values map[string]string) (map[string]string, error) {
	return f(ctx, fields, values)
}

// Edit runs one round of the form and applies every changed value in
// field order. It stops at the first rejected value.
func (e *Editor[T]) Edit(ctx context.Context, form Form) error {
	current := e.Values()
	edited, err := form.Present(ctx, e.Fields(), current)
	if err != nil {
		return fmt.Errorf("form failed: %w", err)
	}

	for _, f := range e.capability.Fields {
		value, ok := edited[f.Key]
		if !ok || value == current[f.Key] {
			continue
		}
		if err := e.Set(f.Key, value); err != nil {
			return err
		}
	}
	return nil
}

// Getter fetches one entity by name. *api.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, kind domain.Kind, name string, out any) error
}

// Fetch loads the server copy of name and opens an editor on it.
func Fetch[T any](ctx context.Context, capability Capability[T], getter Getter, saver Saver, name string, opts ...Option) (*Editor[T], error) {
	var raw json.RawMessage
	if err := getter.Get(ctx, capability.Kind, name, &raw); err != nil {
		return nil, fmt.Errorf("failed to load %s %q: %w", capability.Kind, name, err)
	}
	entity, err := capability.FromWire(raw)
	if err != nil {
		return nil, err
	}
	return Load(capability, saver, entity, opts...), nil
}

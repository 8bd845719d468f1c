package model

import (
	"fmt"
	"reflect"
	"sort"
)

// Registry holds all registered models. A Registry is not safe for
// concurrent registration; register everything during startup, then treat
// it as read-only.
type Registry struct {
	byName map[string]*Registered
	byType map[reflect.Type]*Registered
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Registered),
		byType: make(map[reflect.Type]*Registered),
	}
}

// Register reflects the model and adds it to the registry.
func (reg *Registry) Register(m Model, opts Options) (*Registered, error) {
	r, err := newRegistered(m, opts)
	if err != nil {
		return nil, err
	}

	if _, exists := reg.byName[r.Opts.Name]; exists {
		return nil, fmt.Errorf("model %s: already registered", r.Opts.Name)
	}

	reg.byName[r.Opts.Name] = r
	reg.byType[r.typ] = r
	return r, nil
}

// MustRegister is Register that panics on error. Intended for startup
// wiring where a bad model definition should abort the process.
func (reg *Registry) MustRegister(m Model, opts Options) *Registered {
	r, err := reg.Register(m, opts)
	if err != nil {
		panic(err)
	}
	return r
}

// Get looks a model up by its GraphQL type name.
func (reg *Registry) Get(name string) (*Registered, bool) {
	r, ok := reg.byName[name]
	return r, ok
}

// ForInstance looks a model up by the dynamic type of an instance.
func (reg *Registry) ForInstance(instance any) (*Registered, bool) {
	t := reflect.TypeOf(instance)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r, ok := reg.byType[t]
	return r, ok
}

// All returns every registered model sorted by name, so schema assembly and
// introspection output are deterministic.
func (reg *Registry) All() []*Registered {
	out := make([]*Registered, 0, len(reg.byName))
	for _, r := range reg.byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opts.Name < out[j].Opts.Name })
	return out
}

// Validate checks cross-model consistency: every relation must point to a
// registered model. Call after all models are registered.
func (reg *Registry) Validate() error {
	for _, r := range reg.byName {
		for _, f := range r.Fields {
			if f.OfType == "" || f.OfType == r.Opts.Name {
				continue
			}
			if _, ok := reg.byName[f.OfType]; !ok {
				return fmt.Errorf("model %s: field %s references unregistered model %s",
					r.Opts.Name, f.Name, f.OfType)
			}
		}
	}
	return nil
}

package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicate is returned when a signature or native name is registered twice.
	ErrDuplicate = errors.New("duplicate definition")
	// ErrEmpty is returned when no directives were found in any managed file.
	ErrEmpty = errors.New("no definitions found")
)

// Registry is the ordered set of definitions parsed in one run.
type Registry struct {
	defs        []*Definition
	bySignature map[signatureKey]*Definition
	byName      map[string]*Definition
}

func New() *Registry {
	return &Registry{
		bySignature: make(map[signatureKey]*Definition),
		byName:      make(map[string]*Definition),
	}
}

// Add registers d and assigns its ID. The same native name may not be
// annotated twice, whatever the kind.
func (r *Registry) Add(d *Definition) error {
	key := signatureKey{kind: d.Kind, signature: d.Signature}
	if prev, ok := r.bySignature[key]; ok {
		return fmt.Errorf("%w: %s at %s, first seen at %s", ErrDuplicate, d, d.Origin, prev.Origin)
	}
	if prev, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("%w: `%s` annotated as %s at %s and as %s at %s",
			ErrDuplicate, d.Name, prev.Kind, prev.Origin, d.Kind, d.Origin)
	}

	d.ID = len(r.defs)
	r.defs = append(r.defs, d)
	r.bySignature[key] = d
	r.byName[d.Name] = d
	return nil
}

// All returns definitions in registration order.
func (r *Registry) All() []*Definition {
	return r.defs
}

func (r *Registry) Len() int {
	return len(r.defs)
}

// Get returns the definition with the given ID.
func (r *Registry) Get(id int) (*Definition, bool) {
	if id < 0 || id >= len(r.defs) {
		return nil, false
	}
	return r.defs[id], true
}

// Lookup finds a definition by kind and exact signature.
func (r *Registry) Lookup(kind Kind, signature string) (*Definition, bool) {
	d, ok := r.bySignature[signatureKey{kind: kind, signature: signature}]
	return d, ok
}

// ByName finds a definition by its native identifier.
func (r *Registry) ByName(name string) (*Definition, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Owner returns the definition d is nested under, if any.
func (r *Registry) Owner(d *Definition) (*Definition, bool) {
	if d.Owner == nil {
		return nil, false
	}
	return r.Get(*d.Owner)
}

// NamespacedName joins public names from the root namespace down to d with
// "::". ok is false when d or one of its owners has no public name; missing
// names the walk that failed.
func (r *Registry) NamespacedName(d *Definition) (name string, missing *Definition, ok bool) {
	if d.PublicName == "" {
		return "", d, false
	}
	name = d.PublicName
	seen := map[int]bool{d.ID: true}
	cur := d
	for {
		owner, has := r.Owner(cur)
		if !has {
			return name, nil, true
		}
		if seen[owner.ID] {
			return "", owner, false
		}
		seen[owner.ID] = true
		if owner.PublicName == "" {
			return "", owner, false
		}
		name = owner.PublicName + "::" + name
		cur = owner
	}
}

// Validate fails when the registry is empty.
func (r *Registry) Validate() error {
	if len(r.defs) == 0 {
		return ErrEmpty
	}
	return nil
}

// Package resolver locates definitions in a checked-out native source tree
// and records permalinks for them.
//
// Resolution for one version runs in two passes over the registry:
// ResolveIdentity for every definition, then AddLinks for every definition.
// AddLinks may read the identity of other definitions (namespaced names), so
// the identity pass must finish first. Within a pass a resolver only writes
// to the definition it was given.
package resolver

import (
	"context"
	"fmt"

	"defdoc/internal/config"
	"defdoc/internal/registry"
	"defdoc/internal/source"
)

// LinkResolver resolves one kind of definition against one version.
type LinkResolver interface {
	Kind() registry.Kind
	// ResolveIdentity records the public name and owner on the first version
	// and verifies them on later ones.
	ResolveIdentity(ctx context.Context, def *registry.Definition, v config.Version) error
	// AddLinks appends the version's links to def.
	AddLinks(ctx context.Context, def *registry.Definition, v config.Version) error
}

// Env is what resolvers share for a run.
type Env struct {
	Files    source.Provider
	Registry *registry.Registry
	URLs     URLs
	// Warn receives non-fatal problems. May be nil.
	Warn     func(Warning)
}

func (e *Env) warn(w Warning) {
	if e.Warn != nil {
		e.Warn(w)
	}
}

// Set holds one resolver per kind.
type Set struct {
	byKind map[registry.Kind]LinkResolver
}

// NewSet returns the function, class and module resolvers bound to env.
func NewSet(env *Env) *Set {
	s := &Set{byKind: make(map[registry.Kind]LinkResolver, 3)}
	for _, r := range []LinkResolver{
		&FunctionResolver{env: env},
		NewClassResolver(env),
		NewModuleResolver(env),
	} {
		s.byKind[r.Kind()] = r
	}
	return s
}

// For returns the resolver for kind.
func (s *Set) For(kind registry.Kind) (LinkResolver, error) {
	r, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no resolver for %s", kind)
	}
	return r, nil
}

// ResolveIdentity dispatches to the resolver for def's kind.
func (s *Set) ResolveIdentity(ctx context.Context, def *registry.Definition, v config.Version) error {
	r, err := s.For(def.Kind)
	if err != nil {
		return err
	}
	return r.ResolveIdentity(ctx, def, v)
}

// AddLinks dispatches to the resolver for def's kind.
func (s *Set) AddLinks(ctx context.Context, def *registry.Definition, v config.Version) error {
	r, err := s.For(def.Kind)
	if err != nil {
		return err
	}
	return r.AddLinks(ctx, def, v)
}

// readLines reads path and reports a missing file as a NotFoundError for def.
func (e *Env) readLines(def *registry.Definition, v config.Version, path string) ([]string, error) {
	lines, err := e.Files.ReadLines(path)
	if err != nil {
		return nil, &NotFoundError{Definition: def, Version: v.Short, Path: path, What: "file", Err: err}
	}
	return lines, nil
}

// addHeaderLink links the header line containing def's signature.
func (e *Env) addHeaderLink(def *registry.Definition, v config.Version) error {
	path := e.URLs.HeaderFile(def.HeaderPath)
	lines, err := e.readLines(def, v, path)
	if err != nil {
		return err
	}
	line := FindSignature(lines, def.Signature)
	if line == 0 {
		return &NotFoundError{Definition: def, Version: v.Short, Path: path, What: "signature"}
	}
	return def.AddLink(v.Short, def.HeaderPath, e.URLs.File(v.Tag, path, line, 0))
}

package resolver

import (
	"context"
	"errors"
	"fmt"

	"defdoc/internal/config"
	"defdoc/internal/registry"
)

// staticResolver handles globals assigned by a registration call at init
// time: classes and modules.
type staticResolver struct {
	env      *Env
	kind     registry.Kind
	patterns registrationPatterns
}

// ClassResolver resolves rb_cXxx globals.
type ClassResolver struct{ staticResolver }

// ModuleResolver resolves rb_mXxx globals.
type ModuleResolver struct{ staticResolver }

func NewClassResolver(env *Env) *ClassResolver {
	return &ClassResolver{staticResolver{
		env:  env,
		kind: registry.KindClass,
		patterns: registrationPatterns{
			root:   []string{"rb_define_class", "boot_defclass", "rb_struct_define_without_accessor"},
			nested: []string{"rb_define_class_under"},
		},
	}}
}

func NewModuleResolver(env *Env) *ModuleResolver {
	return &ModuleResolver{staticResolver{
		env:  env,
		kind: registry.KindModule,
		patterns: registrationPatterns{
			root:   []string{"rb_define_module"},
			nested: []string{"rb_define_module_under"},
		},
	}}
}

func (r *staticResolver) Kind() registry.Kind {
	return r.kind
}

// ResolveIdentity finds the registration call for def and records or
// verifies its public name and owner.
func (r *staticResolver) ResolveIdentity(ctx context.Context, def *registry.Definition, v config.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines, err := r.env.readLines(def, v, def.SourcePath)
	if err != nil {
		return err
	}

	var (
		publicName string
		owner      *int
	)
	reg, found := r.patterns.FindRegistration(lines, def.Name)
	if found {
		if reg.PublicName == "" {
			return &NotFoundError{
				Definition: def, Version: v.Short, Path: def.SourcePath,
				What: fmt.Sprintf("public name literal after line %d", reg.Line),
			}
		}
		publicName = reg.PublicName
		if reg.Parent != "" {
			parent, ok := r.env.Registry.ByName(reg.Parent)
			if !ok {
				return &NotFoundError{
					Definition: def, Version: v.Short, Path: def.SourcePath,
					What: fmt.Sprintf("parent `%s` (not annotated)", reg.Parent),
				}
			}
			id := parent.ID
			owner = &id
		}
	}

	if err := def.SetIdentity(publicName, owner); err != nil {
		var mismatch *registry.IdentityMismatch
		if !errors.As(err, &mismatch) {
			return err
		}
		ie := &IdentityError{Definition: def, Version: v.Short, Field: mismatch.Field, Old: mismatch.Old, New: mismatch.New}
		if mismatch.Field == "owner" {
			ie.Old = r.ownerName(def.Owner)
			ie.New = r.ownerName(owner)
		}
		return ie
	}

	if publicName == "" && def.Kind.ExpectsPublicName() {
		r.env.warn(Warning{
			Reason:     ReasonMissingPublicName,
			Definition: def,
			Version:    v.Short,
			Message:    fmt.Sprintf("can't find public name for %s in %s", def, def.SourcePath),
		})
	}
	return nil
}

func (r *staticResolver) ownerName(owner *int) string {
	if owner == nil {
		return "<none>"
	}
	d, ok := r.env.Registry.Get(*owner)
	if !ok {
		return fmt.Sprintf("#%d", *owner)
	}
	if d.PublicName != "" {
		return d.PublicName
	}
	return d.Name
}

// AddLinks records the documentation, header and source links, in that order.
func (r *staticResolver) AddLinks(ctx context.Context, def *registry.Definition, v config.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if def.PublicName != "" && v.Doc != "" {
		name, missing, ok := r.env.Registry.NamespacedName(def)
		if ok {
			if err := def.AddLink(v.Short, "documentation", r.env.URLs.Doc(v.Doc, name)); err != nil {
				return err
			}
		} else {
			r.env.warn(Warning{
				Reason:     ReasonMissingNamespace,
				Definition: def,
				Version:    v.Short,
				Message:    fmt.Sprintf("can't build namespaced name for %s: %s has no public name", def, missing),
			})
		}
	}

	if err := r.env.addHeaderLink(def, v); err != nil {
		return err
	}

	lines, err := r.env.readLines(def, v, def.SourcePath)
	if err != nil {
		return err
	}
	line := FindAssignment(lines, def.Name)
	if line == 0 {
		return &NotFoundError{Definition: def, Version: v.Short, Path: def.SourcePath, What: "assignment"}
	}
	return def.AddLink(v.Short, def.SourcePath, r.env.URLs.File(v.Tag, def.SourcePath, line, 0))
}

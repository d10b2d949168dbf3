package resolver

import (
	"context"

	"defdoc/internal/config"
	"defdoc/internal/registry"
)

// FunctionResolver links C functions to their header prototype and body.
type FunctionResolver struct {
	env *Env
}

func (r *FunctionResolver) Kind() registry.Kind {
	return registry.KindFunction
}

// ResolveIdentity is a no-op: functions have no public name.
func (r *FunctionResolver) ResolveIdentity(context.Context, *registry.Definition, config.Version) error {
	return nil
}

func (r *FunctionResolver) AddLinks(ctx context.Context, def *registry.Definition, v config.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines, err := r.env.readLines(def, v, def.SourcePath)
	if err != nil {
		return err
	}
	start, end := FindFunction(lines, def.Name, def.Type)
	if start == 0 {
		return &NotFoundError{Definition: def, Version: v.Short, Path: def.SourcePath, What: "function definition"}
	}
	if end == 0 {
		return &NotFoundError{Definition: def, Version: v.Short, Path: def.SourcePath, What: "end of function body"}
	}

	if err := r.env.addHeaderLink(def, v); err != nil {
		return err
	}
	return def.AddLink(v.Short, def.SourcePath, r.env.URLs.File(v.Tag, def.SourcePath, start, end))
}

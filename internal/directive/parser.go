package directive

import (
	"fmt"

	"go.uber.org/zap"

	"defdoc/internal/registry"
)

// Parser fills a registry from managed binding files.
type Parser struct {
	registry *registry.Registry
	log      *zap.SugaredLogger

	// Unknown counts directives with unrecognised keywords.
	Unknown int
}

// NewParser creates a parser appending to reg.
func NewParser(reg *registry.Registry, log *zap.SugaredLogger) *Parser {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Parser{registry: reg, log: log}
}

// ParseFile registers a definition for every directive in lines. file names
// the binding file in messages; headerPath is the native header its
// declarations come from.
func (p *Parser) ParseFile(file, headerPath string, lines []string) error {
	for i, line := range lines {
		d, ok := Match(line)
		if !ok {
			continue
		}
		if !d.Known() {
			p.Unknown++
			p.log.Warnw("unknown directive", "file", file, "line", i+1, "text", line)
			continue
		}

		args, err := d.ParseArgs()
		if err != nil {
			return &ParseError{File: file, Line: i + 1, Text: line, Err: err}
		}

		def := &registry.Definition{
			Kind:       d.Kind,
			HeaderPath: headerPath,
			SourcePath: args.SourcePath,
			Signature:  args.Signature,
			Type:       args.Type,
			Name:       args.Name,
			Arguments:  args.Arguments,
			Origin:     registry.Origin{File: file, Line: i + 1},
		}
		if err := p.registry.Add(def); err != nil {
			return fmt.Errorf("register directive: %w", err)
		}
		p.log.Debugw("registered definition", "definition", def.String(), "origin", def.Origin.String())
	}
	return nil
}

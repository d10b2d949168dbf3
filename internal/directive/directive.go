// Package directive recognises `//+ kind: args` markers in binding sources
// and turns them into registry definitions.
package directive

import (
	"fmt"
	"regexp"

	"defdoc/internal/registry"
)

var (
	directiveRe = regexp.MustCompile(`^(\s*)//\+ ([a-z\-]+):\s*(.+)`)

	// //+ c-class: object.c `VALUE rb_cObject`
	staticArgsRe = regexp.MustCompile("^(?P<path>\\S+\\.c) `(?P<signature>(?P<type>.+\\S)\\s*(?P<name>rb_[a-zA-Z0-9_]+))`\\s*$")

	// //+ c-func: symbol.c `ID rb_intern(const char*)`
	funcArgsRe = regexp.MustCompile("^(?P<path>\\S+\\.c) `(?P<signature>(?P<type>.+\\S)\\s*(?P<name>rb_[a-zA-Z0-9_]+)\\s*\\((?P<arguments>.*)\\))`\\s*$")
)

var keywords = map[string]registry.Kind{
	"c-module":            registry.KindModule,
	"c-class":             registry.KindClass,
	"c-func":              registry.KindFunction,
	"module-definition":   registry.KindModule,
	"class-definition":    registry.KindClass,
	"function-definition": registry.KindFunction,
}

// Directive is a marker line split into its parts.
type Directive struct {
	Indent  string
	Command string
	Args    string
	Kind    registry.Kind // zero when Command is not a known keyword
}

// Known reports whether the command selects a definition kind.
func (d Directive) Known() bool {
	return d.Kind != 0
}

// Args is the argument bundle extracted by a kind's grammar.
type Args struct {
	SourcePath string
	Signature  string
	Type       string
	Name       string
	Arguments  string
}

// Match reports whether line is a directive.
func Match(line string) (Directive, bool) {
	m := directiveRe.FindStringSubmatch(line)
	if m == nil {
		return Directive{}, false
	}
	return Directive{
		Indent:  m[1],
		Command: m[2],
		Args:    m[3],
		Kind:    keywords[m[2]],
	}, true
}

// ParseArgs applies the grammar for the directive's kind.
func (d Directive) ParseArgs() (Args, error) {
	re := staticArgsRe
	if d.Kind == registry.KindFunction {
		re = funcArgsRe
	}
	if !d.Known() {
		return Args{}, fmt.Errorf("unknown directive %q", d.Command)
	}

	m := re.FindStringSubmatch(d.Args)
	if m == nil {
		return Args{}, fmt.Errorf("unrecognized args `%s` for `%s`", d.Args, d.Command)
	}
	args := Args{
		SourcePath: m[re.SubexpIndex("path")],
		Signature:  m[re.SubexpIndex("signature")],
		Type:       m[re.SubexpIndex("type")],
		Name:       m[re.SubexpIndex("name")],
	}
	if i := re.SubexpIndex("arguments"); i >= 0 {
		args.Arguments = m[i]
	}
	return args, nil
}

// ParseError is a directive whose arguments do not fit its grammar.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v: %s", e.File, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

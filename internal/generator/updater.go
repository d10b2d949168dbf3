package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"defdoc/internal/directive"
	"defdoc/internal/registry"
)

var docCommentRe = regexp.MustCompile(`^\s*///`)

// Rewrite replaces the doc block that follows each known directive in lines
// with a freshly rendered one. Unknown directives and all other lines are
// copied through. trailingNewline reports whether the original content
// ended with "\n" so the output can match it byte for byte. Rendered lines
// take the directive line's "\r" when the file uses CRLF endings.
func Rewrite(file string, lines []string, trailingNewline bool, reg *registry.Registry) (string, error) {
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		out = append(out, line)

		d, ok := directive.Match(line)
		if !ok || !d.Known() {
			continue
		}
		args, err := d.ParseArgs()
		if err != nil {
			return "", &directive.ParseError{File: file, Line: i + 1, Text: line, Err: err}
		}
		def, ok := reg.Lookup(d.Kind, args.Signature)
		if !ok {
			return "", fmt.Errorf("%s:%d: no definition registered for %s `%s`", file, i+1, d.Kind, args.Signature)
		}

		for i+1 < len(lines) && docCommentRe.MatchString(lines[i+1]) {
			i++
		}
		block := RenderBlock(def, d.Indent)
		if strings.HasSuffix(line, "\r") {
			for j := range block {
				block[j] += "\r"
			}
		}
		out = append(out, block...)
	}

	content := strings.Join(out, "\n")
	if trailingNewline {
		content += "\n"
	}
	return content, nil
}

// SplitContent splits file content on "\n". The returned flag reports
// whether content ended with a newline; no empty last line is produced for it.
func SplitContent(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailing
}

// FileUpdate is the rendered result for one managed binding file.
type FileUpdate struct {
	Path     string // as configured, relative to the bindings root
	Original string
	Updated  string
}

func (u FileUpdate) Changed() bool {
	return u.Original != u.Updated
}

// Diff returns a unified diff from the current to the rendered content.
func (u FileUpdate) Diff() (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(u.Original),
		B:        difflib.SplitLines(u.Updated),
		FromFile: "a/" + u.Path,
		ToFile:   "b/" + u.Path,
		Context:  3,
	})
}

// SourceUpdater renders every managed file before any of them is written.
type SourceUpdater struct {
	Root     string
	Registry *registry.Registry
}

func NewSourceUpdater(root string, reg *registry.Registry) *SourceUpdater {
	return &SourceUpdater{Root: root, Registry: reg}
}

// Source is a managed binding file as read once at the start of a run.
type Source struct {
	Path    string // relative to the bindings root
	Content string
}

// Lines splits Content for the directive parser and Rewrite.
func (s Source) Lines() ([]string, bool) {
	return SplitContent(s.Content)
}

// Load reads each managed file under Root.
func (u *SourceUpdater) Load(paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(u.Root, p))
		if err != nil {
			return nil, fmt.Errorf("read binding file: %w", err)
		}
		sources = append(sources, Source{Path: p, Content: string(data)})
	}
	return sources, nil
}

// Render rewrites each loaded source in memory. The disk is not touched, so
// the output always matches the content the registry was built from.
func (u *SourceUpdater) Render(sources []Source) ([]FileUpdate, error) {
	updates := make([]FileUpdate, 0, len(sources))
	for _, src := range sources {
		lines, trailing := src.Lines()
		updated, err := Rewrite(src.Path, lines, trailing, u.Registry)
		if err != nil {
			return nil, err
		}
		updates = append(updates, FileUpdate{Path: src.Path, Original: src.Content, Updated: updated})
	}
	return updates, nil
}

// Write stores the changed updates under dir, which is the bindings root
// for in-place runs. Unchanged files are left alone unless dir is another
// directory. It returns the paths written.
func (u *SourceUpdater) Write(updates []FileUpdate, dir string) ([]string, error) {
	inPlace := filepath.Clean(dir) == filepath.Clean(u.Root)
	var written []string
	for _, up := range updates {
		if inPlace && !up.Changed() {
			continue
		}
		target := filepath.Join(dir, up.Path)
		if err := writeFileAtomic(target, []byte(up.Updated)); err != nil {
			return written, err
		}
		written = append(written, up.Path)
	}
	return written, nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, keeping the existing file mode.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	mode := os.FileMode(0644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

package crawler

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"defdoc/internal/directive"
)

// Unmanaged is a binding file that carries directives but is not listed in
// the binding file map, so its blocks would never be regenerated.
type Unmanaged struct {
	Path       string // relative to the scanned root, slash separated
	Directives int
}

// Crawler scans a bindings tree for directive markers.
type Crawler struct {
	ignored    []string
	extensions map[string]bool
}

// NewCrawler creates a crawler for Rust binding sources.
func NewCrawler() *Crawler {
	return &Crawler{
		ignored:    []string{".git", "target", "vendor", "node_modules", "testdata"},
		extensions: map[string]bool{".rs": true},
	}
}

// FindUnmanaged walks root and returns files with at least one known
// directive whose root-relative path is not in managed.
func (c *Crawler) FindUnmanaged(root string, managed []string) ([]Unmanaged, error) {
	known := make(map[string]bool, len(managed))
	for _, m := range managed {
		known[filepath.ToSlash(filepath.Clean(m))] = true
	}

	var out []Unmanaged
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !c.extensions[filepath.Ext(d.Name())] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if known[rel] {
			return nil
		}

		n, err := countDirectives(path)
		if err != nil {
			return err
		}
		if n > 0 {
			out = append(out, Unmanaged{Path: rel, Directives: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func countDirectives(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if d, ok := directive.Match(sc.Text()); ok && d.Known() {
			n++
		}
	}
	return n, sc.Err()
}

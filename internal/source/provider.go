// Package source exposes native project snapshots, one version at a time.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"defdoc/internal/config"
)

// ErrNotFound is wrapped by ReadLines when a path is absent at the current version.
var ErrNotFound = errors.New("file not found")

// Provider gives access to the native tree at one checked-out version.
type Provider interface {
	// Checkout loads the tree for v; later reads see that version.
	Checkout(ctx context.Context, v config.Version) error
	// ReadLines returns the lines of path without line terminators.
	ReadLines(path string) ([]string, error)
}

// SplitLines splits file content into lines, dropping "\n" and "\r\n"
// terminators. A trailing newline does not produce an empty final line.
func SplitLines(data string) []string {
	if data == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(data, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// readTree reads path below root, mapping a missing file to ErrNotFound.
func readTree(root, path string, label string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s at %s: %w", path, label, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s at %s: %w", path, label, err)
	}
	return SplitLines(string(data)), nil
}

// DirProvider serves pre-extracted snapshots laid out as <Root>/<tag>/<path>.
type DirProvider struct {
	Root    string
	current config.Version
}

func NewDirProvider(root string) *DirProvider {
	return &DirProvider{Root: root}
}

func (p *DirProvider) Checkout(_ context.Context, v config.Version) error {
	dir := filepath.Join(p.Root, v.Tag)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("snapshot for %s: %w", v.Tag, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot for %s: %s is not a directory", v.Tag, dir)
	}
	p.current = v
	return nil
}

func (p *DirProvider) ReadLines(path string) ([]string, error) {
	if p.current.Tag == "" {
		return nil, errors.New("no version checked out")
	}
	return readTree(filepath.Join(p.Root, p.current.Tag), path, p.current.Tag)
}

// MapProvider serves in-memory snapshots keyed by tag, then path.
type MapProvider struct {
	Files   map[string]map[string]string
	current string

	mu    sync.Mutex
	reads map[string]int
}

func NewMapProvider(files map[string]map[string]string) *MapProvider {
	return &MapProvider{Files: files, reads: make(map[string]int)}
}

func (p *MapProvider) Checkout(_ context.Context, v config.Version) error {
	if _, ok := p.Files[v.Tag]; !ok {
		return fmt.Errorf("unknown tag %s", v.Tag)
	}
	p.current = v.Tag
	return nil
}

func (p *MapProvider) ReadLines(path string) ([]string, error) {
	p.mu.Lock()
	p.reads[p.current+":"+path]++
	p.mu.Unlock()
	content, ok := p.Files[p.current][path]
	if !ok {
		return nil, fmt.Errorf("%s at %s: %w", path, p.current, ErrNotFound)
	}
	return SplitLines(content), nil
}

// Reads reports how many times path was read at tag.
func (p *MapProvider) Reads(tag, path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads[tag+":"+path]
}

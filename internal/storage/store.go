package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"defdoc/internal/registry"
)

// ReportStore persists run reports. Reports are written once per run and
// only read back for inspection.
type ReportStore interface {
	// SaveRun stores a complete run in one transaction.
	SaveRun(ctx context.Context, run *Run) error

	// LatestRun returns the ID of the most recently started run.
	LatestRun(ctx context.Context) (string, error)

	// LoadLinks returns the link table of a run, optionally filtered by
	// native name or public name.
	LoadLinks(ctx context.Context, runID, name string) ([]LinkRow, error)

	Close() error
}

// Run is the outcome of one generate invocation.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Versions    []string
	Definitions []DefinitionRecord
	Warnings    int
}

type DefinitionRecord struct {
	DefID          int
	Kind           string
	Name           string
	Signature      string
	PublicName     string
	NamespacedName string
	Origin         string
	Links          []LinkRecord
}

type LinkRecord struct {
	Version  string
	Position int
	Category string
	URL      string
}

// LinkRow is one row of a loaded link table.
type LinkRow struct {
	Kind     string
	Name     string
	Public   string
	Version  string
	Category string
	URL      string
}

// NewRun snapshots the registry after resolution.
func NewRun(reg *registry.Registry, versions []string, started time.Time) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: started.UTC(),
		Versions:  versions,
	}
	for _, d := range reg.All() {
		rec := DefinitionRecord{
			DefID:      d.ID,
			Kind:       d.Kind.String(),
			Name:       d.Name,
			Signature:  d.Signature,
			PublicName: d.PublicName,
			Origin:     d.Origin.String(),
		}
		if name, _, ok := reg.NamespacedName(d); ok {
			rec.NamespacedName = name
		}
		for _, vl := range d.Links {
			for i, l := range vl.Links {
				rec.Links = append(rec.Links, LinkRecord{Version: vl.Label, Position: i, Category: l.Category, URL: l.URL})
			}
		}
		run.Definitions = append(run.Definitions, rec)
	}
	return run
}

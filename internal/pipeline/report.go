package pipeline

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed report.schema.json
var reportSchemaJSON []byte

const reportSchemaURL = "defdoc://report.schema.json"

var (
	reportSchemaOnce sync.Once
	reportSchema     *jsonschema.Schema
	reportSchemaErr  error
)

type ReportSignal struct {
	Code       string `json:"code"`
	Stage      string `json:"stage"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Definition string `json:"definition,omitempty"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	Definitions       int            `json:"definitions"`
	FilesChanged      int            `json:"files_changed"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Report is the JSON summary of one generate run.
type Report struct {
	RunID       string         `json:"run_id"`
	Mode        string         `json:"mode"`
	GeneratedAt string         `json:"generated_at"`
	Versions    []string       `json:"versions"`
	Stages      []StageMetric  `json:"stages"`
	Signals     []ReportSignal `json:"signals,omitempty"`
	Summary     ReportSummary  `json:"summary"`

	definitions  int
	filesChanged int
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewReport(runID, mode string) *Report {
	return &Report{
		RunID:       runID,
		Mode:        mode,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Versions:    []string{},
		Stages:      []StageMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *Report) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *Report) EndStage(h StageHandle, counters map[string]float64, err error) {
	if r == nil || h.name == "" {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.Stages = append(r.Stages, m)
}

func (r *Report) AddSignal(s ReportSignal) {
	if r == nil {
		return
	}
	s.Code = strings.TrimSpace(s.Code)
	s.Severity = strings.ToLower(strings.TrimSpace(s.Severity))
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

// Warnings counts signals of severity "warning".
func (r *Report) Warnings() int {
	n := 0
	for _, s := range r.Signals {
		if s.Severity == "warning" {
			n++
		}
	}
	return n
}

func (r *Report) Finalize() {
	if r == nil {
		return
	}
	severityCount := map[string]int{
		"warning": 0,
		"info":    0,
	}
	// warnings first
	sort.SliceStable(r.Signals, func(i, j int) bool {
		wi := r.Signals[i].Severity == "warning"
		wj := r.Signals[j].Severity == "warning"
		if wi == wj {
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return wi
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}

	r.Summary = ReportSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		Definitions:       r.definitions,
		FilesChanged:      r.filesChanged,
		SignalsBySeverity: severityCount,
	}
}

func (r *Report) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := validateReport(data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// validateReport checks encoded report JSON against the embedded schema.
func validateReport(data []byte) error {
	schema, err := loadReportSchema()
	if err != nil {
		return fmt.Errorf("failed to compile report schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to normalize report for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("report schema validation failed: %w", err)
	}
	return nil
}

func loadReportSchema() (*jsonschema.Schema, error) {
	reportSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(reportSchemaURL, bytes.NewReader(reportSchemaJSON)); err != nil {
			reportSchemaErr = err
			return
		}
		reportSchema, reportSchemaErr = compiler.Compile(reportSchemaURL)
	})
	return reportSchema, reportSchemaErr
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

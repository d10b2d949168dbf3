package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_SaveValidatesAgainstSchema(t *testing.T) {
	r := NewReport("run-1", string(ModeCheck))
	r.Versions = []string{"2.3"}
	h := r.BeginStage("parse")
	r.EndStage(h, map[string]float64{"definitions": 3, " ": 1}, nil)
	h = r.BeginStage("resolve 2.3")
	r.EndStage(h, nil, errors.New("boom"))
	r.AddSignal(ReportSignal{Code: "unknown_directive", Stage: "parse", Severity: "INFO", Message: "ignored"})
	r.AddSignal(ReportSignal{Code: "missing_namespace", Stage: "resolve 2.3", Severity: "warning", Message: "no name"})
	r.AddSignal(ReportSignal{Code: "dropped", Stage: "parse", Severity: "warning"})

	path := filepath.Join(t.TempDir(), "nested", "report.json")
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved Report
	require.NoError(t, json.Unmarshal(data, &saved))

	require.Len(t, saved.Signals, 2, "signals without a message are dropped")
	assert.Equal(t, "warning", saved.Signals[0].Severity, "warnings sort first")
	assert.Equal(t, "info", saved.Signals[1].Severity)
	assert.Equal(t, map[string]int{"warning": 1, "info": 1}, saved.Summary.SignalsBySeverity)
	assert.Equal(t, 1, saved.Summary.FailedStages)
	assert.Equal(t, map[string]float64{"definitions": 3}, saved.Stages[0].Counters)
	assert.Equal(t, "boom", saved.Stages[1].Error)
}

func TestReport_SaveRejectsInvalidReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	err := NewReport("run-1", "sideways").Save(path)
	assert.ErrorContains(t, err, "report schema validation failed")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing written")

	err = NewReport("", string(ModeInPlace)).Save(path)
	assert.ErrorContains(t, err, "report schema validation failed")
}

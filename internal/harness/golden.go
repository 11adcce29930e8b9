package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/provsync/internal/diff"
	"github.com/roach88/provsync/internal/memstore"
	"github.com/roach88/provsync/internal/prov"
)

// TraceSnapshot captures the complete trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot into values prov.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":            event.Step,
			"record":          event.Record,
			"op":              event.Op,
			"actions":         diff.Trace(event.Actions),
			"applied":         event.Applied,
			"resolved":        event.Resolved,
			"skipped_deletes": event.SkippedDeletes,
		}
		if event.RunID != "" {
			eventMap["run_id"] = event.RunID
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// MarshalTrace renders a scenario trace as canonical JSON.
func MarshalTrace(name string, trace []TraceEvent) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Trace: trace}
	return prov.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden runs scenario against a fresh in-memory store and compares
// its canonical trace with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, memstore.New())
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

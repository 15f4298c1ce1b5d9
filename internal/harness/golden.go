package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cartledger/internal/model"
)

// canonical returns e as the plain map form model.MarshalCanonical accepts.
// Empty fields are left out.
func (e TraceEvent) canonical() map[string]any {
	m := map[string]any{"type": e.Type, "seq": e.Seq}
	for key, v := range map[string]string{"action": e.Action, "client": e.Client, "case": e.Case} {
		if v != "" {
			m[key] = v
		}
	}
	if e.Args != nil {
		m["args"] = e.Args
	}
	if e.Result != nil {
		m["result"] = e.Result
	}
	return m
}

// MarshalTrace renders a run as canonical JSON, the golden file format:
// {"scenario_name": ..., "trace": [...]} with sorted keys and no spaces.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	events := make([]any, 0, len(result.Trace))
	for _, e := range result.Trace {
		events = append(events, e.canonical())
	}
	return model.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
	})
}

// RunWithGolden runs scenario and checks its trace against
// testdata/golden/<name>.golden. Pass -update to go test to rewrite the
// golden files.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	trace, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}
	goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	).Assert(t, scenarioName, trace)
	return nil
}

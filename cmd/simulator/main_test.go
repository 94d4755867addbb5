package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/railyard-simulator/core"
	"github.com/signalsfoundry/railyard-simulator/internal/logging"
)

// A three-junction line with one train a single hop from its destination.
const lineScenario = `{
  "tracks": [
    {"from": 0, "to": 1, "track_id": 10, "train_id": 20},
    {"from": 1, "to": 2, "track_id": 11}
  ],
  "trains": {
    "20": {"facing_junction": 1, "dest_junction": 2}
  }
}`

// Same line plus a disconnected island the train can never reach.
const strandedScenario = `{
  "tracks": [
    {"from": 0, "to": 1, "track_id": 10, "train_id": 20},
    {"from": 3, "to": 4, "track_id": 12}
  ],
  "trains": {
    "20": {"facing_junction": 1, "dest_junction": 4}
  }
}`

func writeScenario(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

// TestRunCommandEndToEnd drives the 'run' subcommand against a small
// scenario and checks that the saved final state shows the train arrived.
func TestRunCommandEndToEnd(t *testing.T) {
	scenario := writeScenario(t, "line.json", lineScenario)
	output := filepath.Join(t.TempDir(), "final.json")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--scenario", scenario, "--output", output, "--max-steps", "10"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	layout, _, err := core.LoadScenario(f)
	if err != nil {
		t.Fatalf("reload final state: %v", err)
	}
	tr := layout.Train(20)
	if tr == nil {
		t.Fatalf("train 20 missing from final state")
	}
	if !tr.Arrived() {
		t.Errorf("train 20 facing %s, want destination %s", tr.Facing(), tr.Dest())
	}
	if track := layout.TrackOf(tr); track == nil || track.ID() != 11 {
		t.Errorf("train 20 on track %v, want 11", track)
	}
}

func TestRunLoopCompletes(t *testing.T) {
	layout, _, err := core.LoadScenario(strings.NewReader(lineScenario))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sim, err := core.NewSimulation(context.Background(), layout, logging.Noop())
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}

	steps, done, err := runLoop(context.Background(), sim, 10)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if !done {
		t.Fatalf("expected all trains to arrive within 10 steps, stopped at %d", steps)
	}
	if steps != 1 {
		t.Errorf("steps = %d, want 1", steps)
	}
}

func TestRunLoopHonorsStepBound(t *testing.T) {
	layout, _, err := core.LoadScenario(strings.NewReader(strandedScenario))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sim, err := core.NewSimulation(context.Background(), layout, logging.Noop())
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}

	steps, done, err := runLoop(context.Background(), sim, 3)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if done {
		t.Fatalf("stranded train reported as arrived")
	}
	if steps != 3 {
		t.Errorf("steps = %d, want the bound 3", steps)
	}
}

func TestValidateCommand(t *testing.T) {
	good := writeScenario(t, "good.json", lineScenario)
	cmd := newRootCmd()
	cmd.SetArgs([]string{"validate", good})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate good scenario: %v", err)
	}

	// A train reference with no matching train entry must fail the load.
	bad := writeScenario(t, "bad.json", `{
	  "tracks": [{"from": 0, "to": 1, "track_id": 10, "train_id": 99}],
	  "trains": {}
	}`)
	cmd = newRootCmd()
	cmd.SetArgs([]string{"validate", bad})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("validate accepted a dangling train reference")
	}
}

func TestRunCommandRecordsTrace(t *testing.T) {
	scenario := writeScenario(t, "line.json", lineScenario)
	traceDB := filepath.Join(t.TempDir(), "trace.db")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--scenario", scenario, "--trace-db", traceDB})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command: %v", err)
	}

	inspect := newRootCmd()
	inspect.SetArgs([]string{"inspect", traceDB})
	if err := inspect.Execute(); err != nil {
		t.Fatalf("inspect trace: %v", err)
	}
}

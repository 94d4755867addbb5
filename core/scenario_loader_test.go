// core/scenario_loader_test.go
package core

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestLoadScenarioBuildsLayout(t *testing.T) {
	doc := `{
  "tracks": [
    {"from": 0, "to": 1, "track_id": 10, "train_id": 20,
     "train_signals": {"30": {"junct_id": 1, "state": "green"}}},
    {"from": 1, "to": 2, "track_id": 11}
  ],
  "trains": {
    "20": {"facing_junction": 1, "dest_junction": 2}
  }
}`
	l, sum, err := LoadScenario(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := len(sum.JunctionIDs); got != 3 {
		t.Errorf("expected 3 junctions, got %d", got)
	}
	if !reflect.DeepEqual(sum.TrackIDs, []Ident{10, 11}) {
		t.Errorf("expected tracks [10 11], got %v", sum.TrackIDs)
	}
	tr := l.Train(20)
	if tr == nil {
		t.Fatalf("train 20 missing")
	}
	if tr.Facing() != 1 || tr.Dest() != 2 {
		t.Errorf("train 20 facing %s dest %s, want 1 and 2", tr.Facing(), tr.Dest())
	}
	if got := l.TrackOf(tr); got == nil || got.ID() != 10 {
		t.Errorf("train 20 not placed on track 10: %v", got)
	}
	sig := l.Signal(30)
	if sig == nil {
		t.Fatalf("signal 30 missing")
	}
	if sig.Junction() != 1 || sig.Aspect() != AspectGreen {
		t.Errorf("signal 30 at %s aspect %s, want junction 1 green", sig.Junction(), sig.Aspect())
	}
}

func TestLoadScenarioMergesRepeatedTrackRecords(t *testing.T) {
	// The same track_id appears twice: once declaring the edge with a
	// signal, once carrying the occupying train.
	doc := `{
  "tracks": [
    {"from": 0, "to": 1, "track_id": 10,
     "train_signals": {"30": {"junct_id": 0, "state": "red"}}},
    {"from": 1, "to": 0, "track_id": 10, "train_id": 20}
  ],
  "trains": {
    "20": {"facing_junction": 0, "dest_junction": 1}
  }
}`
	l, sum, err := LoadScenario(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sum.TrackIDs) != 1 {
		t.Fatalf("expected a single merged track, got %v", sum.TrackIDs)
	}
	track := l.Track(10)
	if len(track.Signals()) != 1 {
		t.Errorf("expected 1 signal on the merged track, got %d", len(track.Signals()))
	}
	if occ := track.Occupant(); occ == nil || occ.ID() != 20 {
		t.Errorf("expected train 20 on the merged track, got %v", occ)
	}
}

func TestLoadScenarioFailures(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "malformed json",
			doc:  `{"tracks": [`,
		},
		{
			name: "dangling train reference",
			doc: `{"tracks": [{"from": 0, "to": 1, "track_id": 10, "train_id": 99}],
			      "trains": {}}`,
			want: ErrUnknownTrain,
		},
		{
			name: "track redeclared with different endpoints",
			doc: `{"tracks": [
			        {"from": 0, "to": 1, "track_id": 10},
			        {"from": 1, "to": 2, "track_id": 10}],
			      "trains": {}}`,
		},
		{
			name: "train placed on two tracks",
			doc: `{"tracks": [
			        {"from": 0, "to": 1, "track_id": 10, "train_id": 20},
			        {"from": 1, "to": 2, "track_id": 11, "train_id": 20}],
			      "trains": {"20": {"facing_junction": 1, "dest_junction": 2}}}`,
		},
		{
			name: "signal declared twice",
			doc: `{"tracks": [
			        {"from": 0, "to": 1, "track_id": 10,
			         "train_signals": {"30": {"junct_id": 0, "state": "red"}}},
			        {"from": 1, "to": 2, "track_id": 11,
			         "train_signals": {"30": {"junct_id": 1, "state": "red"}}}],
			      "trains": {}}`,
		},
		{
			name: "signal junction not an endpoint",
			doc: `{"tracks": [
			        {"from": 0, "to": 1, "track_id": 10,
			         "train_signals": {"30": {"junct_id": 5, "state": "red"}}}],
			      "trains": {}}`,
			want: ErrNoEdge,
		},
		{
			name: "unknown aspect spelling",
			doc: `{"tracks": [
			        {"from": 0, "to": 1, "track_id": 10,
			         "train_signals": {"30": {"junct_id": 0, "state": "amber"}}}],
			      "trains": {}}`,
		},
		{
			name: "negative train key",
			doc: `{"tracks": [{"from": 0, "to": 1, "track_id": 10}],
			      "trains": {"-3": {"facing_junction": 0, "dest_junction": 1}}}`,
		},
		{
			name: "train facing unknown junction",
			doc: `{"tracks": [{"from": 0, "to": 1, "track_id": 10}],
			      "trains": {"20": {"facing_junction": 7, "dest_junction": 1}}}`,
			want: ErrUnknownJunction,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, err := LoadScenario(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected load to fail")
			}
			if l != nil {
				t.Errorf("failed load leaked a partial layout")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l := NewLayout()
	for i := 0; i < 4; i++ {
		l.AddJunction()
	}
	for _, e := range [][2]Ident{{0, 1}, {1, 2}, {1, 3}} {
		if _, err := l.Connect(e[0], e[1]); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	tr, err := l.AddTrain(1, 3)
	if err != nil {
		t.Fatalf("add train: %v", err)
	}
	if err := l.PlaceTrain(tr.ID(), l.TrackBetween(0, 1).ID()); err != nil {
		t.Fatalf("place: %v", err)
	}
	sig, err := l.AddSignal(l.TrackBetween(1, 2).ID(), 2)
	if err != nil {
		t.Fatalf("add signal: %v", err)
	}
	sig.SetAspect(AspectGreen)

	var buf bytes.Buffer
	if err := SaveScenario(&buf, l); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, _, err := LoadScenario(&buf)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if !reflect.DeepEqual(summarize(l), summarize(reloaded)) {
		t.Errorf("summaries differ after round trip:\n%+v\n%+v", summarize(l), summarize(reloaded))
	}
	for _, j := range l.Junctions() {
		got := reloaded.Junction(j.ID())
		if got == nil || !reflect.DeepEqual(got.Neighbors(), j.Neighbors()) {
			t.Errorf("junction %s adjacency changed", j.ID())
		}
	}
	rt := reloaded.Train(tr.ID())
	if rt == nil || rt.Facing() != tr.Facing() || rt.Dest() != tr.Dest() {
		t.Errorf("train state changed across round trip")
	}
	if got := reloaded.TrackOf(rt); got == nil || got.ID() != l.TrackOf(tr).ID() {
		t.Errorf("train placement changed across round trip")
	}
	rs := reloaded.Signal(sig.ID())
	if rs == nil || rs.Aspect() != AspectGreen || rs.Junction() != sig.Junction() {
		t.Errorf("signal state changed across round trip")
	}
}

func TestLoadResynchronizesAllocator(t *testing.T) {
	doc := `{
  "tracks": [{"from": 3, "to": 41, "track_id": 12}],
  "trains": {}
}`
	l, _, err := LoadScenario(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	j := l.AddJunction()
	if j.ID() <= 41 {
		t.Errorf("fresh ident %s collides with persisted range", j.ID())
	}
}

// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ScenarioSummary is a small account of what a load produced, mainly useful
// for logging from main.
type ScenarioSummary struct {
	JunctionIDs []Ident
	TrackIDs    []Ident
	TrainIDs    []Ident
	SignalIDs   []Ident
}

// Persisted JSON shapes. Unexported so the document format can evolve
// without leaking into the API.
type scenarioJSON struct {
	Tracks []trackRecordJSON          `json:"tracks"`
	Trains map[string]trainRecordJSON `json:"trains"`
}

type trackRecordJSON struct {
	From         int64                       `json:"from"`
	To           int64                       `json:"to"`
	TrackID      int64                       `json:"track_id"`
	TrainID      *int64                      `json:"train_id,omitempty"`
	TrainSignals map[string]signalRecordJSON `json:"train_signals,omitempty"`
}

type signalRecordJSON struct {
	JunctID int64  `json:"junct_id"`
	State   string `json:"state"` // "green" | "red"
}

type trainRecordJSON struct {
	Facing int64 `json:"facing_junction"`
	Dest   int64 `json:"dest_junction"`
}

// LoadScenario reads a persisted scenario and builds a fresh Layout from it.
// Junctions are created on first reference with their persisted idents;
// repeated records for the same track_id refer to the same track and may
// each contribute signals or an occupying train. The load is atomic: any
// malformed record or dangling reference fails the whole call and no partial
// layout escapes. The layout's allocator ends up past every persisted ident.
func LoadScenario(r io.Reader) (*Layout, *ScenarioSummary, error) {
	var doc scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("load scenario: decode: %w", err)
	}

	l := NewLayout()

	// Pass 1: topology. Junctions materialize on first reference.
	for _, rec := range doc.Tracks {
		from, to := Ident(rec.From), Ident(rec.To)
		id := Ident(rec.TrackID)
		if existing := l.Track(id); existing != nil {
			if !existing.HasEnd(from) || !existing.HasEnd(to) {
				return nil, nil, fmt.Errorf("load scenario: track %s redeclared with endpoints %s-%s", id, from, to)
			}
			continue
		}
		l.addJunctionWithID(from)
		l.addJunctionWithID(to)
		if _, err := l.connectWithID(id, from, to); err != nil {
			return nil, nil, fmt.Errorf("load scenario: %w", err)
		}
	}

	// Pass 2: trains, ascending by persisted ident for determinism.
	trainIDs := make([]Ident, 0, len(doc.Trains))
	for key := range doc.Trains {
		id, err := parseIdentKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("load scenario: train id %q: %w", key, err)
		}
		trainIDs = append(trainIDs, id)
	}
	sortIdents(trainIDs)
	for _, id := range trainIDs {
		rec := doc.Trains[strconv.FormatInt(int64(id), 10)]
		if _, err := l.addTrainWithID(id, Ident(rec.Facing), Ident(rec.Dest)); err != nil {
			return nil, nil, fmt.Errorf("load scenario: train %s: %w", id, err)
		}
	}

	// Pass 3: signals and train placement.
	for _, rec := range doc.Tracks {
		trackID := Ident(rec.TrackID)
		sigIDs := make([]Ident, 0, len(rec.TrainSignals))
		for key := range rec.TrainSignals {
			id, err := parseIdentKey(key)
			if err != nil {
				return nil, nil, fmt.Errorf("load scenario: signal id %q: %w", key, err)
			}
			sigIDs = append(sigIDs, id)
		}
		sortIdents(sigIDs)
		for _, sigID := range sigIDs {
			sigRec := rec.TrainSignals[strconv.FormatInt(int64(sigID), 10)]
			if l.Signal(sigID) != nil {
				return nil, nil, fmt.Errorf("load scenario: signal %s declared twice", sigID)
			}
			aspect, err := ParseAspect(sigRec.State)
			if err != nil {
				return nil, nil, fmt.Errorf("load scenario: signal %s: %w", sigID, err)
			}
			sig, err := l.addSignalWithID(sigID, trackID, Ident(sigRec.JunctID))
			if err != nil {
				return nil, nil, fmt.Errorf("load scenario: %w", err)
			}
			sig.SetAspect(aspect)
		}

		if rec.TrainID != nil {
			trainID := Ident(*rec.TrainID)
			tr := l.Train(trainID)
			if tr == nil {
				return nil, nil, fmt.Errorf("load scenario: track %s: %w %s", trackID, ErrUnknownTrain, trainID)
			}
			if l.TrackOf(tr) != nil {
				return nil, nil, fmt.Errorf("load scenario: train %s placed on two tracks", trainID)
			}
			if err := l.PlaceTrain(trainID, trackID); err != nil {
				return nil, nil, fmt.Errorf("load scenario: %w", err)
			}
		}
	}

	return l, summarize(l), nil
}

// SaveScenario writes the layout as a scenario document, one record per
// track sorted ascending by track ident.
func SaveScenario(w io.Writer, l *Layout) error {
	if l == nil {
		return fmt.Errorf("save scenario: nil layout")
	}
	doc := scenarioJSON{
		Trains: make(map[string]trainRecordJSON, len(l.trains)),
	}
	for _, t := range l.Tracks() {
		a, b := t.Ends()
		rec := trackRecordJSON{
			From:    int64(a),
			To:      int64(b),
			TrackID: int64(t.ID()),
		}
		if occ := t.Occupant(); occ != nil {
			id := int64(occ.ID())
			rec.TrainID = &id
		}
		if signals := t.Signals(); len(signals) > 0 {
			rec.TrainSignals = make(map[string]signalRecordJSON, len(signals))
			for _, s := range signals {
				rec.TrainSignals[strconv.FormatInt(int64(s.ID()), 10)] = signalRecordJSON{
					JunctID: int64(s.Junction()),
					State:   s.Aspect().String(),
				}
			}
		}
		doc.Tracks = append(doc.Tracks, rec)
	}
	for _, tr := range l.Trains() {
		doc.Trains[strconv.FormatInt(int64(tr.ID()), 10)] = trainRecordJSON{
			Facing: int64(tr.Facing()),
			Dest:   int64(tr.Dest()),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("save scenario: encode: %w", err)
	}
	return nil
}

func summarize(l *Layout) *ScenarioSummary {
	sum := &ScenarioSummary{}
	for _, j := range l.Junctions() {
		sum.JunctionIDs = append(sum.JunctionIDs, j.ID())
	}
	for _, t := range l.Tracks() {
		sum.TrackIDs = append(sum.TrackIDs, t.ID())
	}
	for _, t := range l.Trains() {
		sum.TrainIDs = append(sum.TrainIDs, t.ID())
	}
	for _, s := range l.Signals() {
		sum.SignalIDs = append(sum.SignalIDs, s.ID())
	}
	return sum
}

func parseIdentKey(key string) (Ident, error) {
	n, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return NoIdent, err
	}
	if n < 0 {
		return NoIdent, fmt.Errorf("negative ident %d", n)
	}
	return Ident(n), nil
}

func sortIdents(ids []Ident) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/railyard-simulator/internal/logging"
)

// Router computes junction paths for trains and converts the chosen path
// into track reservations. Enumeration order is pinned: neighbors are always
// expanded ascending by ident, so candidate paths come out in lexicographic
// order and repeated runs pick identical routes.
type Router struct {
	layout *Layout
	log    logging.Logger
}

func NewRouter(layout *Layout, log logging.Logger) *Router {
	if log == nil {
		log = logging.Noop()
	}
	return &Router{layout: layout, log: log}
}

// PlanRoute (re)plans the route for tr and rewrites its reservations.
//
// An arrived train simply has its reservations cleared. Otherwise the router
// enumerates candidate paths from the facing junction to the destination:
// first every shortest path, then, if none qualifies, every simple path. The
// first candidate whose second junction is not the junction immediately
// behind the train wins; the behind-filter keeps trains from being routed
// back through the track they are standing on. Failure to find a qualifying
// path is non-fatal: the previous reservations stay in place and the train
// retries next step.
func (r *Router) PlanRoute(ctx context.Context, tr *Train) error {
	if tr.Arrived() {
		r.layout.clearReservations(tr)
		return nil
	}

	behind, hasBehind := r.layout.behindOf(tr)

	path := pickPath(r.shortestPaths(tr.facing, tr.dest), behind, hasBehind)
	if path == nil {
		path = pickPath(r.simplePaths(tr.facing, tr.dest), behind, hasBehind)
	}
	if path == nil {
		r.log.Warn(ctx, "no route to destination",
			logging.Any("train", tr.id),
			logging.Any("facing", tr.facing),
			logging.Any("dest", tr.dest))
		return fmt.Errorf("train %s from %s to %s: %w", tr.id, tr.facing, tr.dest, ErrRouteNotFound)
	}

	tracks, err := r.trackSequence(path)
	if err != nil {
		return err
	}

	r.layout.clearReservations(tr)
	for _, t := range tracks {
		t.Reserve(tr)
	}
	r.log.Debug(ctx, "route planned",
		logging.Any("train", tr.id),
		logging.Int("hops", len(tracks)))
	return nil
}

// pickPath returns the first candidate whose first hop does not lead back
// through the junction behind the train.
func pickPath(paths [][]Ident, behind Ident, hasBehind bool) []Ident {
	for _, p := range paths {
		if len(p) < 2 {
			continue
		}
		if hasBehind && p[1] == behind {
			continue
		}
		return p
	}
	return nil
}

// trackSequence maps consecutive junction pairs to their tracks. A missing
// edge means the path does not describe the layout and is a fatal error.
func (r *Router) trackSequence(path []Ident) ([]*Track, error) {
	tracks := make([]*Track, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		t := r.layout.TrackBetween(path[i], path[i+1])
		if t == nil {
			return nil, fmt.Errorf("path step %s-%s: %w", path[i], path[i+1], ErrNoEdge)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// shortestPaths enumerates every minimum-hop path from from to to, in
// lexicographic order by junction ident. It walks the BFS distance gradient
// toward the destination, so only shortest paths are produced.
func (r *Router) shortestPaths(from, to Ident) [][]Ident {
	dist := r.distancesTo(to)
	d, ok := dist[from]
	if !ok {
		return nil
	}
	var out [][]Ident
	path := make([]Ident, 0, d+1)
	var walk func(cur Ident)
	walk = func(cur Ident) {
		path = append(path, cur)
		defer func() { path = path[:len(path)-1] }()
		if cur == to {
			out = append(out, append([]Ident(nil), path...))
			return
		}
		for _, n := range r.layout.Neighbors(cur) {
			if nd, ok := dist[n]; ok && nd == dist[cur]-1 {
				walk(n)
			}
		}
	}
	walk(from)
	return out
}

// simplePaths enumerates every cycle-free path from from to to, depth first
// with ascending neighbor expansion, i.e. lexicographic order.
func (r *Router) simplePaths(from, to Ident) [][]Ident {
	var out [][]Ident
	visited := map[Ident]bool{}
	var path []Ident
	var walk func(cur Ident)
	walk = func(cur Ident) {
		visited[cur] = true
		path = append(path, cur)
		defer func() {
			visited[cur] = false
			path = path[:len(path)-1]
		}()
		if cur == to {
			out = append(out, append([]Ident(nil), path...))
			return
		}
		for _, n := range r.layout.Neighbors(cur) {
			if !visited[n] {
				walk(n)
			}
		}
	}
	walk(from)
	return out
}

// distancesTo runs a BFS from the destination and returns hop distances for
// every junction that can reach it.
func (r *Router) distancesTo(to Ident) map[Ident]int {
	dist := map[Ident]int{to: 0}
	queue := []Ident{to}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range r.layout.Neighbors(cur) {
			if _, seen := dist[n]; !seen {
				dist[n] = dist[cur] + 1
				queue = append(queue, n)
			}
		}
	}
	return dist
}

package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulationCollector bundles Prometheus metrics for the step loop. It
// satisfies the scheduler's metrics hook, so the Simulation drives counter
// and gauge values directly as it steps.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Steps          prometheus.Counter
	TrainMoves     prometheus.Counter
	MovesBlocked   *prometheus.CounterVec
	RouteReplans   prometheus.Counter
	RouteFailures  prometheus.Counter
	RouteDurations prometheus.Histogram

	TrainsUnfinished prometheus.Gauge
	TracksReserved   prometheus.Gauge
}

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total number of completed simulation steps.",
	}), "sim_steps_total")
	if err != nil {
		return nil, err
	}

	moves, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_train_moves_total",
		Help: "Total number of single-hop train movements.",
	}), "sim_train_moves_total")
	if err != nil {
		return nil, err
	}

	blocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_moves_blocked_total",
		Help: "Movement attempts held in place, labeled by reason.",
	}, []string{"reason"})
	blocked, err = registerCounterVec(reg, blocked, "sim_moves_blocked_total")
	if err != nil {
		return nil, err
	}

	replans, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_route_replans_total",
		Help: "Total number of route planning attempts.",
	}), "sim_route_replans_total")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_route_failures_total",
		Help: "Route planning attempts that found no usable path.",
	}), "sim_route_failures_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_route_plan_duration_seconds",
		Help:    "Duration of route planning, path enumeration included.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "sim_route_plan_duration_seconds")
	if err != nil {
		return nil, err
	}

	unfinished, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_trains_unfinished",
		Help: "Trains not yet facing their destination.",
	}), "sim_trains_unfinished")
	if err != nil {
		return nil, err
	}

	reserved, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_tracks_reserved",
		Help: "Tracks carrying at least one advisory reservation.",
	}), "sim_tracks_reserved")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:         gatherer,
		Steps:            steps,
		TrainMoves:       moves,
		MovesBlocked:     blocked,
		RouteReplans:     replans,
		RouteFailures:    failures,
		RouteDurations:   durations,
		TrainsUnfinished: unfinished,
		TracksReserved:   reserved,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StepAdvanced counts one completed step.
func (c *SimulationCollector) StepAdvanced() {
	if c == nil || c.Steps == nil {
		return
	}
	c.Steps.Inc()
}

// TrainMoved counts one train hop.
func (c *SimulationCollector) TrainMoved() {
	if c == nil || c.TrainMoves == nil {
		return
	}
	c.TrainMoves.Inc()
}

// MoveBlocked counts a held movement attempt by reason.
func (c *SimulationCollector) MoveBlocked(reason string) {
	if c == nil || c.MovesBlocked == nil {
		return
	}
	c.MovesBlocked.WithLabelValues(reason).Inc()
}

// RoutePlanned records a planning attempt, its duration, and whether it
// produced a route.
func (c *SimulationCollector) RoutePlanned(d time.Duration, err error) {
	if c == nil {
		return
	}
	if c.RouteReplans != nil {
		c.RouteReplans.Inc()
	}
	if err != nil && c.RouteFailures != nil {
		c.RouteFailures.Inc()
	}
	if c.RouteDurations != nil {
		c.RouteDurations.Observe(d.Seconds())
	}
}

// SetUnfinished updates the unfinished-trains gauge.
func (c *SimulationCollector) SetUnfinished(n int) {
	if c == nil || c.TrainsUnfinished == nil {
		return
	}
	c.TrainsUnfinished.Set(float64(n))
}

// SetReservedTracks updates the reserved-tracks gauge.
func (c *SimulationCollector) SetReservedTracks(n int) {
	if c == nil || c.TracksReserved == nil {
		return
	}
	c.TracksReserved.Set(float64(n))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

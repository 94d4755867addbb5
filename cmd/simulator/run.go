package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/railyard-simulator/core"
	"github.com/signalsfoundry/railyard-simulator/internal/config"
	"github.com/signalsfoundry/railyard-simulator/internal/logging"
	"github.com/signalsfoundry/railyard-simulator/internal/observability"
	"github.com/signalsfoundry/railyard-simulator/internal/recorder"
)

// newRunCmd creates the 'run' command, which loads a scenario and advances
// the simulation until every train arrives or the step bound is hit.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a scenario and run it to completion",
		Long: `Loads a scenario document, then advances the simulation one step at a
time until every train faces its destination (or --max-steps is hit).
The final state can be saved back out, every step optionally recorded
to a SQLite trace, and metrics served on a Prometheus endpoint.

Examples:
  simulator run --scenario yard.json
  simulator run --config sim.yaml --trace-db trace.db
  simulator run --scenario yard.json --output final.json --max-steps 200`,
		RunE: runRun,
	}

	cmd.Flags().String("config", "", "YAML config file")
	cmd.Flags().String("scenario", "", "Scenario document to load")
	cmd.Flags().String("output", "", "Save the final state to this path")
	cmd.Flags().Int("max-steps", 0, "Step bound; 0 keeps the config value")
	cmd.Flags().String("trace-db", "", "SQLite trace database path")
	cmd.Flags().String("metrics-addr", "", "Prometheus listen address, e.g. :9090")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Scenario == "" {
		return fmt.Errorf("no scenario given: set --scenario or the config file's scenario key")
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx, log := logging.WithRunLogger(cmd.Context(), log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	sim, summary, err := loadSimulation(ctx, cfg.Scenario, log)
	if err != nil {
		return err
	}
	log.Info(ctx, "scenario loaded",
		logging.String("scenario", cfg.Scenario),
		logging.Int("junctions", len(summary.JunctionIDs)),
		logging.Int("tracks", len(summary.TrackIDs)),
		logging.Int("trains", len(summary.TrainIDs)),
		logging.Int("signals", len(summary.SignalIDs)))

	if cfg.MetricsAddr != "" {
		collector, err := observability.NewSimulationCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		sim.SetMetrics(collector)
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics endpoint failed", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "metrics endpoint up", logging.String("addr", cfg.MetricsAddr))
	}

	if cfg.TraceDB != "" {
		rec, err := recorder.Open(cfg.TraceDB)
		if err != nil {
			return err
		}
		defer rec.Close()
		runID, err := rec.BeginRun(ctx, cfg.Scenario)
		if err != nil {
			return err
		}
		sim.RegisterStepListener(func(rep core.StepReport) {
			if err := rec.RecordStep(ctx, runID, rep); err != nil {
				log.Warn(ctx, "trace write failed", logging.String("error", err.Error()))
			}
		})
		defer func() {
			if err := rec.FinishRun(ctx, runID); err != nil {
				log.Warn(ctx, "trace finish failed", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "recording run", logging.String("trace_db", cfg.TraceDB), logging.String("trace_run", runID))
	}

	steps, done, err := runLoop(ctx, sim, cfg.MaxSteps)
	if err != nil {
		return fmt.Errorf("simulation aborted at step %d: %w", steps, err)
	}
	log.Info(ctx, "run complete",
		logging.Int("steps", steps),
		logging.Any("all_arrived", done))

	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output %q: %w", cfg.Output, err)
		}
		defer f.Close()
		if err := core.SaveScenario(f, sim.Layout()); err != nil {
			return err
		}
		log.Info(ctx, "final state saved", logging.String("output", cfg.Output))
	}
	return nil
}

func loadRunConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if v, _ := cmd.Flags().GetString("scenario"); v != "" {
		cfg.Scenario = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output = v
	}
	if v, _ := cmd.Flags().GetInt("max-steps"); v > 0 {
		cfg.MaxSteps = v
	}
	if v, _ := cmd.Flags().GetString("trace-db"); v != "" {
		cfg.TraceDB = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	return cfg, nil
}

func loadSimulation(ctx context.Context, path string, log logging.Logger) (*core.Simulation, *core.ScenarioSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	layout, summary, err := core.LoadScenario(f)
	if err != nil {
		return nil, nil, err
	}
	sim, err := core.NewSimulation(ctx, layout, log)
	if err != nil {
		return nil, nil, err
	}
	return sim, summary, nil
}

// runLoop advances the simulation until it reports no more updates or the
// step bound is reached. It returns the number of steps taken and whether
// every train arrived.
func runLoop(ctx context.Context, sim *core.Simulation, maxSteps int) (int, bool, error) {
	tracer := otel.Tracer("simulator")
	steps := 0
	for maxSteps <= 0 || steps < maxSteps {
		stepCtx, span := tracer.Start(ctx, "sim.step",
			trace.WithAttributes(attribute.Int("sim.step_number", sim.Step()+1)))
		more, err := sim.Advance(stepCtx)
		span.End()
		if err != nil {
			return steps, false, err
		}
		if !more {
			return steps, true, nil
		}
		steps++
	}
	return steps, false, nil
}

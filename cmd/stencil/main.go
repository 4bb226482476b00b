package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/0x5844/stencil2d/internal/config"
	"github.com/0x5844/stencil2d/internal/engine"
	"github.com/0x5844/stencil2d/internal/grid"
	"github.com/0x5844/stencil2d/internal/gridio"
	"github.com/0x5844/stencil2d/internal/monitor"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

// Options holds settings that only exist on the command line.
type Options struct {
	ConfigFile string
	LogFormat  string
	Debug      bool
	Quiet      bool
	Compare    bool
	ProfileCPU string
	ProfileMem string
}

func parseFlags(args []string) (*config.Config, *Options, error) {
	fs := flag.NewFlagSet("stencil", flag.ContinueOnError)
	opts := &Options{}
	fromFlags := config.Config{}

	fs.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&fromFlags.Grid.Input, "input", "", "initial state file (default init.dat)")
	fs.StringVar(&fromFlags.Grid.Output, "output", config.DefaultOutput, "final state file")
	fs.StringVar(&fromFlags.Grid.Generate, "generate", "", "generate the initial state instead of reading it (uniform, hotspot)")
	fs.IntVar(&fromFlags.Grid.Width, "width", 1024, "generated grid width")
	fs.IntVar(&fromFlags.Grid.Height, "height", 1024, "generated grid height")
	fs.IntVar(&fromFlags.Run.Steps, "steps", config.DefaultSteps, "total sub-steps")
	fs.IntVar(&fromFlags.Run.SubSteps, "substeps", config.DefaultSubSteps, "sub-steps per engine call")
	fs.IntVar(&fromFlags.Run.Threads, "threads", runtime.NumCPU(), "number of worker threads")
	fs.IntVar(&fromFlags.Run.BlockSize, "block-size", 0, "tile edge (0 = derived from grid and threads)")
	vectorize := fs.Bool("vectorize", true, "use width-8 kernels on aligned tiles")
	fs.BoolVar(&fromFlags.Run.Naive, "naive", false, "run the single-threaded reference step")
	fs.StringVar(&fromFlags.Output.Snapshot, "snapshot", "", "msgpack snapshot file")
	fs.IntVar(&fromFlags.Output.SnapshotEvery, "snapshot-every", 0, "snapshot interval in sub-steps (0 = final only)")
	fs.StringVar(&fromFlags.Monitor.Listen, "listen", "", "serve websocket progress on this address")
	fs.StringVar(&fromFlags.Monitor.MQTT.Broker, "mqtt-broker", "", "publish progress to this MQTT broker")
	fs.StringVar(&fromFlags.Monitor.MQTT.Topic, "mqtt-topic", config.DefaultTopic, "MQTT progress topic")
	fs.BoolVar(&opts.Compare, "compare", false, "also run the reference step and report the largest difference")
	fs.StringVar(&opts.LogFormat, "log-format", "text", "log format (text, json)")
	fs.BoolVar(&opts.Debug, "debug", false, "debug logging")
	fs.BoolVar(&opts.Quiet, "quiet", false, "only log warnings and errors")
	fs.StringVar(&opts.ProfileCPU, "profile-cpu", "", "CPU profile output file")
	fs.StringVar(&opts.ProfileMem, "profile-mem", "", "memory profile output file")

	var showVersion bool
	fs.BoolVar(&showVersion, "version", false, "show version information")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "stencil - parallel 2D heat diffusion\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nFlags override values from -config.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -input init.dat -steps 256 -threads 8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -generate hotspot -width 2048 -height 2048 -listen :8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config run.yaml -naive -compare\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nVersion: %s\n", Version)
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if showVersion {
		fmt.Printf("stencil version %s\n", Version)
		fmt.Printf("Built: %s\n", BuildTime)
		fmt.Printf("Go: %s\n", GoVersion)
		os.Exit(0)
	}

	cfg := &config.Config{}
	if opts.ConfigFile != "" {
		var err error
		// Validation waits until flags are applied.
		if cfg, err = config.Decode(opts.ConfigFile); err != nil {
			return nil, nil, err
		}
	}

	// Explicit flags win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Grid.Input = fromFlags.Grid.Input
		case "output":
			cfg.Grid.Output = fromFlags.Grid.Output
		case "generate":
			cfg.Grid.Generate = fromFlags.Grid.Generate
		case "width":
			cfg.Grid.Width = fromFlags.Grid.Width
		case "height":
			cfg.Grid.Height = fromFlags.Grid.Height
		case "steps":
			cfg.Run.Steps = fromFlags.Run.Steps
		case "substeps":
			cfg.Run.SubSteps = fromFlags.Run.SubSteps
		case "threads":
			cfg.Run.Threads = fromFlags.Run.Threads
		case "block-size":
			cfg.Run.BlockSize = fromFlags.Run.BlockSize
		case "vectorize":
			cfg.Run.Vectorize = vectorize
		case "naive":
			cfg.Run.Naive = fromFlags.Run.Naive
		case "snapshot":
			cfg.Output.Snapshot = fromFlags.Output.Snapshot
		case "snapshot-every":
			cfg.Output.SnapshotEvery = fromFlags.Output.SnapshotEvery
		case "listen":
			cfg.Monitor.Listen = fromFlags.Monitor.Listen
		case "mqtt-broker":
			cfg.Monitor.MQTT.Broker = fromFlags.Monitor.MQTT.Broker
		case "mqtt-topic":
			cfg.Monitor.MQTT.Topic = fromFlags.Monitor.MQTT.Topic
		}
	})

	if cfg.Grid.Input == "" && cfg.Grid.Generate == "" {
		cfg.Grid.Input = "init.dat"
	}
	if cfg.Grid.Generate != "" && cfg.Grid.Width == 0 && cfg.Grid.Height == 0 {
		cfg.Grid.Width, cfg.Grid.Height = fromFlags.Grid.Width, fromFlags.Grid.Height
	}
	cfg.ApplyDefaults()
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, opts, nil
}

func newLogger(opts *Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Debug:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func loadGrid(cfg *config.Config) (*gridio.Grid, error) {
	if cfg.Grid.Input != "" {
		return gridio.Read(cfg.Grid.Input)
	}
	return gridio.Generate(cfg.Grid.Generate, cfg.Grid.Width, cfg.Grid.Height)
}

func buildSinks(cfg *config.Config, logger *slog.Logger) (monitor.Multi, error) {
	sinks := monitor.Multi{monitor.LogSink{Logger: logger}}

	if cfg.Monitor.Listen != "" {
		hub := monitor.NewHub(logger)
		if _, err := hub.Listen(cfg.Monitor.Listen); err != nil {
			return nil, fmt.Errorf("progress server: %w", err)
		}
		sinks = append(sinks, hub)
	}

	if cfg.Monitor.MQTT.Broker != "" {
		sink := monitor.NewMQTTSink(monitor.MQTTOptions{
			Broker:   cfg.Monitor.MQTT.Broker,
			Topic:    cfg.Monitor.MQTT.Topic,
			ClientID: cfg.Monitor.MQTT.ClientID,
			QoS:      cfg.Monitor.MQTT.QoS,
		}, logger)
		if err := sink.Connect(5 * time.Second); err != nil {
			// The run continues without the broker.
			logger.Warn("mqtt unavailable, progress will not be published", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	return sinks, nil
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "stencil: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(opts)
	slog.SetDefault(logger)

	if err := run(cfg, opts, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts *Options, logger *slog.Logger) error {
	if opts.ProfileCPU != "" {
		f, err := os.Create(opts.ProfileCPU)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	for _, w := range config.Warnings(cfg) {
		logger.Warn(w)
	}

	g, err := loadGrid(cfg)
	if err != nil {
		return err
	}
	state, err := g.State()
	if err != nil {
		return err
	}

	var reference *grid.State
	if opts.Compare {
		reference, err = grid.NewState(state.Current().Clone(), state.Next().Clone(), state.Conduct())
		if err != nil {
			return err
		}
	}

	eng, err := engine.New(state, engine.Config{
		Threads:   cfg.Run.Threads,
		BlockSize: cfg.Run.BlockSize,
		Vectorize: cfg.VectorizeEnabled(),
		Naive:     cfg.Run.Naive,
	}, logger)
	if err != nil {
		return err
	}
	logger = logger.With("run_id", eng.ID.String())

	logger.Info("starting stencil engine",
		"version", Version,
		"grid", fmt.Sprintf("%dx%d", state.Width, state.Height),
		"mode", mode(cfg),
		"cpus", runtime.NumCPU(),
		"threads", eng.Threads(),
		"steps", cfg.Run.Steps,
		"substeps", cfg.Run.SubSteps)

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer sinks.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lastSnapshot := 0
	onProgress := func(p engine.Progress) error {
		ev := monitor.NewEvent(eng.ID.String(), p.Step, p.Total, p.Elapsed, state.Current())
		if err := sinks.Publish(ev); err != nil {
			logger.Warn("progress publish failed", "error", err)
		}
		if cfg.Output.Snapshot == "" {
			return nil
		}
		every := cfg.Output.SnapshotEvery
		if p.Step == p.Total || (every > 0 && p.Step-lastSnapshot >= every) {
			lastSnapshot = p.Step
			if err := gridio.WriteSnapshot(cfg.Output.Snapshot, gridio.NewSnapshot(eng.ID, p.Step, state)); err != nil {
				return err
			}
			logger.Debug("snapshot written", "path", cfg.Output.Snapshot, "step", p.Step)
		}
		return nil
	}

	start := time.Now()
	err = eng.Run(ctx, cfg.Run.Steps, cfg.Run.SubSteps, onProgress)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn("interrupted, writing partial result", "substeps", eng.Stats().SubSteps)
	case err != nil:
		return fmt.Errorf("engine error: %w", err)
	}

	if err := gridio.WriteState(cfg.Grid.Output, state); err != nil {
		return err
	}
	logger.Info("result written", "path", cfg.Grid.Output, "buffer", state.CurrentRole().String())

	if reference != nil {
		done := int(eng.Stats().SubSteps)
		refStart := time.Now()
		engine.Reference(reference, done)
		refElapsed := time.Since(refStart)
		logger.Info("reference comparison",
			"substeps", done,
			"max_abs_diff", maxAbsDiff(state.Current(), reference.Current()),
			"reference_s", refElapsed.Seconds(),
			"speedup", refElapsed.Seconds()/elapsed.Seconds())
	}

	if opts.ProfileMem != "" {
		f, err := os.Create(opts.ProfileMem)
		if err != nil {
			logger.Warn("could not create memory profile", "error", err)
		} else {
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				logger.Warn("could not write memory profile", "error", err)
			}
		}
	}

	report(logger, eng, elapsed)
	return nil
}

func mode(cfg *config.Config) string {
	switch {
	case cfg.Run.Naive:
		return "naive"
	case cfg.VectorizeEnabled():
		return "vectorized"
	default:
		return "scalar"
	}
}

func maxAbsDiff(a, b *grid.Field) float64 {
	var worst float64
	for i := range a.Data {
		d := float64(a.Data[i] - b.Data[i])
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

func report(logger *slog.Logger, eng *engine.Engine, elapsed time.Duration) {
	stats := eng.DetailedStats()
	simStats := stats["simulation"].(map[string]interface{})
	perfStats := stats["performance"].(map[string]interface{})
	gridStats := stats["grid"].(map[string]interface{})

	cells := float64(gridStats["total_cells"].(int)) * float64(simStats["substeps"].(int64))
	logger.Info("final report",
		"substeps", simStats["substeps"],
		"calls", simStats["calls"],
		"elapsed_s", elapsed.Seconds(),
		"avg_substep_us", simStats["avg_substep"].(int64)/1000,
		"boundary_s", simStats["boundary_time"],
		"interior_s", simStats["interior_time"],
		"swap_s", simStats["swap_time"],
		"mcells_per_s", cells/elapsed.Seconds()/1e6,
		"tasks_processed", perfStats["tasks_processed"],
		"avg_task_us", perfStats["avg_task_time"].(int64)/1000)

	if sched, ok := stats["schedule"].(map[string]interface{}); ok {
		logger.Info("schedule",
			"block_size", sched["block_size"],
			"tiles", sched["tiles"],
			"vector_tiles", sched["vector_tiles"],
			"worker_loads", perfStats["worker_loads"])
	}
}

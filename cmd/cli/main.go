package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/emmett/loopcap/internal/app"
	"github.com/emmett/loopcap/internal/audio"
	"github.com/emmett/loopcap/internal/config"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file (default: ~/.loopcaprc or /etc/loopcap/config.yaml)")
	processName   = flag.String("process", "", "Capture audio from the process matching this name")
	processPID    = flag.Uint("pid", 0, "Capture audio from this process ID")
	exclude       = flag.Bool("exclude", false, "Invert process capture: record everything except the target's process tree")
	duration      = flag.Duration("duration", 0, "Recording duration (e.g. 30s, 5m; default: until Ctrl+C)")
	outputFile    = flag.String("output", "", "Output WAV file (default: capture.wav)")
	chunkFrames   = flag.Int("chunk-size", 0, "Frames per chunk (default: 480, 10ms at 48kHz)")
	queueDepth    = flag.Int("queue-size", 0, "Maximum chunks buffered before oldest are dropped (default: 1000)")
	reportFormat  = flag.String("format", "", "Report format: text, json (default: text)")
	logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	listDevices   = flag.Bool("list-devices", false, "List available loopback sources")
	listProcesses = flag.Bool("list-processes", false, "List running processes that could be capture targets")
	showVersion   = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	applyConfigDefaults(cfg)
	setupLogging(*logLevel)

	if *showVersion {
		fmt.Printf("loopcap v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	if *listDevices {
		if err := app.ListDevices(*reportFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *listProcesses {
		if err := app.ListProcesses(*reportFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyConfigDefaults(cfg *config.Config) {
	flagsSet := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		flagsSet[f.Name] = true
	})

	if !flagsSet["output"] && cfg.Output.File != "" {
		*outputFile = cfg.Output.File
	}
	if !flagsSet["format"] && cfg.Output.Format != "" {
		*reportFormat = cfg.Output.Format
	}
	if !flagsSet["chunk-size"] && cfg.Audio.ChunkFrames > 0 {
		*chunkFrames = cfg.Audio.ChunkFrames
	}
	if !flagsSet["queue-size"] && cfg.Audio.QueueDepth > 0 {
		*queueDepth = cfg.Audio.QueueDepth
	}
	if !flagsSet["log-level"] && cfg.Log.Level != "" {
		*logLevel = cfg.Log.Level
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	capture := audio.DefaultConfig()
	if cfg.Audio.SampleRate > 0 {
		capture.SampleRate = cfg.Audio.SampleRate
	}
	if cfg.Audio.Channels > 0 {
		capture.Channels = cfg.Audio.Channels
	}
	if cfg.Audio.SilenceThreshold > 0 {
		capture.SilenceThreshold = cfg.Audio.SilenceThreshold
	}
	if cfg.Audio.ActivationTimeoutMS > 0 {
		capture.ActivationTimeout = time.Duration(cfg.Audio.ActivationTimeoutMS) * time.Millisecond
	}
	if *chunkFrames > 0 {
		capture.ChunkFrames = *chunkFrames
	}
	if *queueDepth > 0 {
		capture.QueueDepth = *queueDepth
	}

	out := *outputFile
	if out == "" {
		out = "capture.wav"
	}

	recorder := app.NewRecorder(app.RecorderConfig{
		ProcessName:  *processName,
		PID:          uint32(*processPID),
		Exclude:      *exclude,
		Duration:     *duration,
		OutputFile:   out,
		ReportFormat: *reportFormat,
		Capture:      capture,
	})
	return recorder.Run()
}

package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/emmett/loopcap/internal/audio"
	"github.com/emmett/loopcap/internal/output"
	"github.com/emmett/loopcap/internal/proc"
	"github.com/emmett/loopcap/internal/wavio"
)

// RecorderConfig holds configuration for one recording session
type RecorderConfig struct {
	// ProcessName resolves the capture target by name; empty with a zero
	// PID means the system mixer
	ProcessName string

	// PID targets a specific process directly, skipping name resolution
	PID uint32

	// Exclude inverts process-scoped capture: everything except the
	// target's process tree
	Exclude bool

	// Duration bounds the recording; zero records until interrupted
	Duration time.Duration

	// OutputFile is the WAV destination
	OutputFile string

	// ReportFormat selects "text" or "json" for the final report
	ReportFormat string

	Capture audio.CaptureConfig
}

// Recorder orchestrates the recording process: resolve the target,
// run a capture session, drain chunks into a WAV file, and report
// session metrics at the end.
type Recorder struct {
	config RecorderConfig
	log    *slog.Logger

	// nil selects the platform capture backend
	activator audio.Activator
}

// NewRecorder creates a new Recorder instance
func NewRecorder(config RecorderConfig) *Recorder {
	return &Recorder{
		config: config,
		log:    slog.Default().With("component", "recorder"),
	}
}

// Run starts the recording session and blocks until it finishes
func (r *Recorder) Run() error {
	target, targetName, err := r.resolveTarget()
	if err != nil {
		return err
	}

	session := audio.NewCaptureSession(r.config.Capture, r.activator)

	if err := session.Start(target); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	// The WAV header must describe the negotiated stream, not the
	// requested one: system-mixer capture runs at the device's own mix
	// format
	format := session.Format()
	writer, err := wavio.NewWriter(r.config.OutputFile, format.SampleRate, format.Channels)
	if err != nil {
		session.Stop()
		return err
	}

	fmt.Fprintf(os.Stderr, "Recording %s to %s", targetName, r.config.OutputFile)
	if r.config.Duration > 0 {
		fmt.Fprintf(os.Stderr, " for %s", r.config.Duration)
	} else {
		fmt.Fprintf(os.Stderr, " until Ctrl+C")
	}
	fmt.Fprintln(os.Stderr, "...")

	// Handle Ctrl+C and an optional duration limit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var deadline <-chan time.Time
	if r.config.Duration > 0 {
		timer := time.NewTimer(r.config.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	drainErr := r.drain(session, writer, sigChan, deadline)

	session.Stop()

	// The queue stays drainable after Stop; collect the tail including
	// the final partial chunk
	for _, chunk := range session.PopChunks(session.QueueSize()+1, 0) {
		if err := writer.WriteChunk(chunk); err != nil {
			drainErr = err
			break
		}
	}

	if err := writer.Close(); err != nil && drainErr == nil {
		drainErr = err
	}

	r.report(session, targetName)

	if drainErr != nil {
		return fmt.Errorf("recording failed: %w", drainErr)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d frames to %s\n", writer.Frames(), r.config.OutputFile)
	return nil
}

// drain moves queued chunks into the WAV writer until the session is
// interrupted or the deadline fires
func (r *Recorder) drain(session *audio.CaptureSession, writer *wavio.Writer,
	sigChan <-chan os.Signal, deadline <-chan time.Time) error {

	const popTimeout = 100 * time.Millisecond
	const batchSize = 64

	for {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nStopping...")
			return nil
		case <-deadline:
			return nil
		default:
		}

		for _, chunk := range session.PopChunks(batchSize, popTimeout) {
			if err := writer.WriteChunk(chunk); err != nil {
				return err
			}
		}
	}
}

// resolveTarget turns the configured process name or PID into a capture
// target
func (r *Recorder) resolveTarget() (audio.CaptureTarget, string, error) {
	pid := r.config.PID
	name := r.config.ProcessName

	if pid == 0 && name != "" {
		info, err := proc.FindByName(name)
		if err != nil {
			return audio.CaptureTarget{}, "", err
		}
		pid = info.PID
		name = info.Name
		r.log.Info("resolved process", "name", info.Name, "pid", info.PID)
	}

	if pid == 0 {
		return audio.SystemMixerTarget(), "system mixer", nil
	}

	if name == "" {
		if resolved, err := proc.Name(pid); err == nil {
			name = resolved
		} else {
			name = fmt.Sprintf("pid %d", pid)
		}
	}

	target := audio.ProcessTarget(pid, !r.config.Exclude)
	label := fmt.Sprintf("%s (pid %d)", name, pid)
	if r.config.Exclude {
		label = "all but " + label
	}
	return target, label, nil
}

// report writes the end-of-session metrics in the configured format
func (r *Recorder) report(session *audio.CaptureSession, targetName string) {
	reporter := output.NewReporter(strings.ToLower(r.config.ReportFormat), os.Stdout)
	err := reporter.WriteReport(output.SessionReport{
		Capturing: session.IsCapturing(),
		Target:    targetName,
		Format:    session.Format().String(),
		ChunkSize: session.ChunkSize(),
		Metrics:   session.Metrics(),
		Queue:     session.QueueStats(),
		Timestamp: time.Now(),
	})
	if err != nil {
		r.log.Warn("report failed", "err", err)
	}
}

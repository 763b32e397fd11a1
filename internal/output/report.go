package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/emmett/loopcap/internal/audio"
	"github.com/emmett/loopcap/internal/proc"
)

// SessionReport combines session metrics and queue counters into one
// consumer-facing record
type SessionReport struct {
	Capturing bool                 `json:"capturing"`
	Target    string               `json:"target"`
	Format    string               `json:"format"`
	ChunkSize int                  `json:"chunk_size"`
	Metrics   audio.SessionMetrics `json:"metrics"`
	Queue     audio.QueueStats     `json:"queue"`
	Timestamp time.Time            `json:"timestamp"`
}

// Reporter renders session reports and listings
type Reporter interface {
	// WriteReport writes one session report
	WriteReport(report SessionReport) error

	// WriteDevices writes a loopback source listing
	WriteDevices(devices []audio.DeviceInfo) error

	// WriteProcesses writes a capture candidate listing
	WriteProcesses(processes []proc.Info) error
}

// NewReporter returns a reporter for the given format name: "json" or
// "text" (the default)
func NewReporter(format string, w io.Writer) Reporter {
	if format == "json" {
		return &jsonReporter{encoder: newIndentEncoder(w)}
	}
	return &textReporter{writer: w}
}

func newIndentEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

// jsonReporter renders machine-readable output
type jsonReporter struct {
	encoder *json.Encoder
}

func (j *jsonReporter) WriteReport(report SessionReport) error {
	return j.encoder.Encode(report)
}

func (j *jsonReporter) WriteDevices(devices []audio.DeviceInfo) error {
	return j.encoder.Encode(devices)
}

func (j *jsonReporter) WriteProcesses(processes []proc.Info) error {
	return j.encoder.Encode(processes)
}

// textReporter renders human-readable output
type textReporter struct {
	writer io.Writer
}

func (t *textReporter) WriteReport(report SessionReport) error {
	m := report.Metrics
	q := report.Queue

	fmt.Fprintf(t.writer, "Capture report (%s)\n", report.Target)
	fmt.Fprintf(t.writer, "  Format:        %s\n", report.Format)
	fmt.Fprintf(t.writer, "  Chunk size:    %d frames\n", report.ChunkSize)
	fmt.Fprintf(t.writer, "  Elapsed:       %.2fs\n", m.ElapsedSeconds)
	fmt.Fprintf(t.writer, "  Frames:        %d (%.0f/s)\n", m.FramesCaptured, m.FramesPerSecond)
	fmt.Fprintf(t.writer, "  Silent frames: %d\n", m.SilentFrames)
	fmt.Fprintf(t.writer, "  Errors:        %d\n", m.CaptureErrors)
	fmt.Fprintf(t.writer, "  Chunks:        %d produced, %d dropped, %d queued\n",
		q.Produced, q.Dropped, q.Depth)
	return nil
}

func (t *textReporter) WriteDevices(devices []audio.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Fprintln(t.writer, "No loopback sources found.")
		return nil
	}

	fmt.Fprintf(t.writer, "Found %d loopback source(s):\n\n", len(devices))
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Fprintf(t.writer, "%d. %s%s\n", i+1, device.Name, marker)
		fmt.Fprintf(t.writer, "   ID: %s\n", device.ID)
	}
	return nil
}

func (t *textReporter) WriteProcesses(processes []proc.Info) error {
	if len(processes) == 0 {
		fmt.Fprintln(t.writer, "No capture candidates found.")
		return nil
	}

	fmt.Fprintf(t.writer, "Found %d capture candidate(s):\n\n", len(processes))
	for _, p := range processes {
		fmt.Fprintf(t.writer, "  %8d  %s\n", p.PID, p.Name)
	}
	return nil
}

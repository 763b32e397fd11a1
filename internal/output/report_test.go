package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/emmett/loopcap/internal/audio"
	"github.com/emmett/loopcap/internal/proc"
)

func sampleReport() SessionReport {
	return SessionReport{
		Target:    "system mixer",
		Format:    "2ch 48000Hz 32bit ieee-float",
		ChunkSize: 480,
		Metrics: audio.SessionMetrics{
			FramesCaptured:  96000,
			SilentFrames:    4800,
			ElapsedSeconds:  2.0,
			FramesPerSecond: 48000,
		},
		Queue: audio.QueueStats{Depth: 3, Produced: 200, Dropped: 1},
	}
}

func TestTextReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("text", &buf)

	if err := r.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"system mixer", "480 frames", "96000", "200 produced", "1 dropped"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestJSONReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("json", &buf)

	if err := r.WriteReport(sampleReport()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid json: %v", err)
	}

	metrics, ok := decoded["metrics"].(map[string]any)
	if !ok {
		t.Fatal("report should carry a metrics object")
	}
	if metrics["total_frames"].(float64) != 96000 {
		t.Errorf("unexpected total_frames: %v", metrics["total_frames"])
	}
	queue, ok := decoded["queue"].(map[string]any)
	if !ok {
		t.Fatal("report should carry a queue object")
	}
	if queue["dropped_chunks"].(float64) != 1 {
		t.Errorf("unexpected dropped_chunks: %v", queue["dropped_chunks"])
	}
}

func TestDeviceListing(t *testing.T) {
	devices := []audio.DeviceInfo{
		{ID: "dev-0", Name: "Speakers", IsDefault: true},
		{ID: "dev-1", Name: "Headphones"},
	}

	var buf bytes.Buffer
	if err := NewReporter("text", &buf).WriteDevices(devices); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Speakers [DEFAULT]") {
		t.Errorf("default device should be marked:\n%s", out)
	}
	if !strings.Contains(out, "Headphones") {
		t.Errorf("listing missing device:\n%s", out)
	}

	buf.Reset()
	if err := NewReporter("text", &buf).WriteDevices(nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No loopback sources") {
		t.Errorf("empty listing should say so:\n%s", buf.String())
	}
}

func TestProcessListing(t *testing.T) {
	processes := []proc.Info{
		{PID: 100, Name: "browser"},
		{PID: 200, Name: "player"},
	}

	var buf bytes.Buffer
	if err := NewReporter("json", &buf).WriteProcesses(processes); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("listing is not valid json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	if decoded[0]["name"] != "browser" || decoded[0]["pid"].(float64) != 100 {
		t.Errorf("unexpected first entry: %v", decoded[0])
	}
}

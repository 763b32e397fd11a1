package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("expected 48000 Hz, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkFrames != 480 {
		t.Errorf("expected 480 chunk frames, got %d", cfg.Audio.ChunkFrames)
	}
	if cfg.Audio.QueueDepth != 1000 {
		t.Errorf("expected queue depth 1000, got %d", cfg.Audio.QueueDepth)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("expected text format, got %s", cfg.Output.Format)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info level, got %s", cfg.Log.Level)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `audio:
  chunk_frames: 960
  queue_depth: 50
output:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Audio.ChunkFrames != 960 {
		t.Errorf("expected 960 chunk frames, got %d", cfg.Audio.ChunkFrames)
	}
	if cfg.Audio.QueueDepth != 50 {
		t.Errorf("expected queue depth 50, got %d", cfg.Audio.QueueDepth)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("expected json format, got %s", cfg.Output.Format)
	}

	// Untouched keys keep their defaults
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("audio: [not a mapping"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("loading invalid yaml should fail")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Audio.ChunkFrames = 240
	cfg.Output.File = "session.wav"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Audio.ChunkFrames != 240 {
		t.Errorf("expected 240 chunk frames, got %d", loaded.Audio.ChunkFrames)
	}
	if loaded.Output.File != "session.wav" {
		t.Errorf("expected session.wav, got %s", loaded.Output.File)
	}
}

func TestLoadWithFallbackDefaults(t *testing.T) {
	// With no explicit path and no config on disk the defaults come back
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFallback("")
	if err != nil {
		t.Fatalf("fallback load failed: %v", err)
	}
	if cfg.Audio.ChunkFrames != 480 {
		t.Errorf("expected default chunk frames, got %d", cfg.Audio.ChunkFrames)
	}
}

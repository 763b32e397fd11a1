//go:build !windows

package audio

// newPlatformActivator selects the miniaudio loopback backend on
// platforms without WASAPI
func newPlatformActivator(cfg CaptureConfig) Activator {
	return NewMalgoActivator(cfg)
}

package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// DeviceInfo describes a render endpoint that can serve as a loopback
// capture source
type DeviceInfo struct {
	ID        string // Unique device identifier
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the default render endpoint
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListLoopbackSources returns the render endpoints whose output can be
// captured. Loopback records what a device is playing, so the sources
// are playback devices, not microphones.
func ListLoopbackSources() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate render devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("render-%d", i),
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}

	return devices, nil
}

// DefaultLoopbackSource returns the default render endpoint
func DefaultLoopbackSource() (*DeviceInfo, error) {
	devices, err := ListLoopbackSources()
	if err != nil {
		return nil, err
	}

	for _, device := range devices {
		if device.IsDefault {
			return &device, nil
		}
	}

	if len(devices) > 0 {
		return &devices[0], nil
	}

	return nil, fmt.Errorf("no render devices found")
}

// FindLoopbackSource finds a render endpoint by name (case-insensitive
// partial match)
func FindLoopbackSource(name string) (*DeviceInfo, error) {
	devices, err := ListLoopbackSources()
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(name)
	for _, device := range devices {
		if strings.Contains(strings.ToLower(device.Name), search) {
			return &device, nil
		}
	}

	return nil, fmt.Errorf("no render device found matching name: %s", name)
}

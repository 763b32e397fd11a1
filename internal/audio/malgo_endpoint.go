package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// malgoPacketFrames is the largest packet AcquirePacket hands out
const malgoPacketFrames = 512

// malgoActivator opens the default render device in loopback mode via
// miniaudio. It serves system-mixer capture on every platform; the
// virtual per-process loopback device only exists on Windows, so
// process-scoped targets are rejected here.
type malgoActivator struct {
	cfg CaptureConfig
}

// NewMalgoActivator returns an activator backed by miniaudio loopback
func NewMalgoActivator(cfg CaptureConfig) Activator {
	return &malgoActivator{cfg: cfg}
}

func (a *malgoActivator) Activate(target CaptureTarget) (Endpoint, error) {
	if !target.IsSystemMixer() {
		return nil, ErrProcessCaptureUnsupported
	}
	return newMalgoEndpoint(a.cfg)
}

// malgoEndpoint adapts miniaudio's callback-push delivery to the
// pull-model Endpoint contract through a frame ring. miniaudio reports
// no per-buffer silence flag, so a silence gate synthesizes one.
type malgoEndpoint struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	format CaptureFormat
	ring   *frameRing
	gate   SilenceGate

	scratch  []byte
	acquired int
}

func newMalgoEndpoint(cfg CaptureConfig) (*malgoEndpoint, error) {
	def := DefaultConfig()
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = def.SampleRate
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = def.Channels
	}

	format := CaptureFormat{
		Channels:      channels,
		SampleRate:    sampleRate,
		BitsPerSample: 32,
		Encoding:      EncodingIEEEFloat,
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}

	ep := &malgoEndpoint{
		ctx:    ctx,
		format: format,
		// One second of headroom between the device callback and the
		// capture goroutine
		ring:    newFrameRing(sampleRate, format.FrameBytes()),
		gate:    NewSilenceGate(cfg.SilenceThreshold),
		scratch: make([]byte, malgoPacketFrames*format.FrameBytes()),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Loopback)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = malgoPacketFrames

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, framecount uint32) {
			// Realtime thread: hand off and return, never block
			ep.ring.WriteFrames(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init loopback device: %w", err)
	}
	ep.device = device

	return ep, nil
}

func (e *malgoEndpoint) Format() CaptureFormat {
	return e.format
}

func (e *malgoEndpoint) Start() error {
	e.ring.Reset()
	if err := e.device.Start(); err != nil {
		return fmt.Errorf("start loopback device: %w", err)
	}
	return nil
}

func (e *malgoEndpoint) Stop() error {
	if err := e.device.Stop(); err != nil {
		return fmt.Errorf("stop loopback device: %w", err)
	}
	return nil
}

func (e *malgoEndpoint) NextPacketFrames() (int, error) {
	n := e.ring.AvailableFrames()
	if n > malgoPacketFrames {
		n = malgoPacketFrames
	}
	return n, nil
}

func (e *malgoEndpoint) AcquirePacket() ([]byte, int, bool, error) {
	frames := e.ring.ReadFrames(e.scratch)
	if frames == 0 {
		return nil, 0, false, nil
	}

	data := e.scratch[:frames*e.format.FrameBytes()]
	silent := e.gate.Silent(ToFloat32(data, e.format, frames))
	e.acquired = frames
	return data, frames, silent, nil
}

func (e *malgoEndpoint) ReleasePacket(frames int) error {
	// The ring already consumed the frames on acquire; nothing to
	// return to the backend
	e.acquired = 0
	return nil
}

func (e *malgoEndpoint) Close() {
	if e.device != nil {
		e.device.Uninit()
		e.device = nil
	}
	if e.ctx != nil {
		_ = e.ctx.Uninit()
		e.ctx.Free()
		e.ctx = nil
	}
}

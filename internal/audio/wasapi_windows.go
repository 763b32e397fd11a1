//go:build windows

package audio

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
)

// WASAPI COM identifiers
var (
	clsidMMDeviceEnumerator = ole.NewGUID("{BCDE0395-E52F-467C-8E3D-C4579291692E}")
	iidIMMDeviceEnumerator  = ole.NewGUID("{A95664D2-9614-4F35-A746-DE8DB63617E6}")
	iidIAudioClient         = ole.NewGUID("{1CB9AD4C-DBFA-4C32-B178-C2F568A703B2}")
	iidIAudioCaptureClient  = ole.NewGUID("{C8ADBD64-E71E-48A0-A4DE-185C395CD317}")
)

// WASAPI constants
const (
	eRender  = 0
	eConsole = 0

	clsctxAll = 0x1 | 0x2 | 0x4 | 0x10

	audclntShareModeShared = 0
	audclntStreamLoopback  = 0x00020000

	audclntBufferFlagsSilent = 0x2

	waveFormatPCM        = 0x0001
	waveFormatIEEEFloat  = 0x0003
	waveFormatExtensible = 0xFFFE

	// The virtual device path for per-process loopback capture
	virtualLoopbackDevice = `VAD\Process_Loopback`

	// AUDIOCLIENT_ACTIVATION_TYPE
	activationTypeProcessLoopback = 1

	// PROCESS_LOOPBACK_MODE
	loopbackModeIncludeTree = 0
	loopbackModeExcludeTree = 1

	vtBlob = 65 // PROPVARIANT VT_BLOB

	// COM vtable indices (IUnknown = 0,1,2; interface methods start at 3)
	mmdeGetDefaultAudioEndpoint = 4 // IMMDeviceEnumerator::GetDefaultAudioEndpoint
	mmDeviceActivate            = 3 // IMMDevice::Activate

	audioClientInitialize   = 3  // IAudioClient::Initialize
	audioClientGetMixFormat = 8  // IAudioClient::GetMixFormat
	audioClientStart        = 10 // IAudioClient::Start
	audioClientStop         = 11 // IAudioClient::Stop
	audioClientGetService   = 14 // IAudioClient::GetService

	capClientGetBuffer         = 3 // IAudioCaptureClient::GetBuffer
	capClientReleaseBuffer     = 4 // IAudioCaptureClient::ReleaseBuffer
	capClientGetNextPacketSize = 5 // IAudioCaptureClient::GetNextPacketSize

	asyncOpGetActivateResult = 3 // IActivateAudioInterfaceAsyncOperation::GetActivateResult
)

var (
	mmdevapiDLL                     = syscall.NewLazyDLL("Mmdevapi.dll")
	procActivateAudioInterfaceAsync = mmdevapiDLL.NewProc("ActivateAudioInterfaceAsync")
	ole32DLL                        = syscall.NewLazyDLL("ole32.dll")
	procCoTaskMemFree               = ole32DLL.NewProc("CoTaskMemFree")
)

// waveFormatEx matches WAVEFORMATEX
type waveFormatEx struct {
	FormatTag      uint16
	Channels       uint16
	SamplesPerSec  uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	CbSize         uint16
}

// audioClientActivationParams matches AUDIOCLIENT_ACTIVATION_PARAMS for
// the process loopback activation type
type audioClientActivationParams struct {
	ActivationType      uint32
	TargetProcessID     uint32
	ProcessLoopbackMode uint32
}

// propVariantBlob matches a PROPVARIANT carrying VT_BLOB on x64
type propVariantBlob struct {
	Vt        uint16
	reserved1 uint16
	reserved2 uint16
	reserved3 uint16
	BlobSize  uint32
	_         uint32 // pad: pBlobData is 8-byte aligned
	BlobData  *byte
}

// comCall invokes a COM vtable method at the given index. obj is a
// pointer to a COM interface (pointer to pointer to vtable).
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(comVtblFn(obj, vtableIdx), allArgs...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// comVtblFn resolves a COM vtable function pointer by index
func comVtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comRelease calls IUnknown::Release (vtable index 2)
func comRelease(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(comVtblFn(obj, 2), obj)
	}
}

// wasapiActivator obtains WASAPI capture handles: the default render
// endpoint in loopback mode for the system mixer, or the virtual
// process loopback device for process-scoped targets.
type wasapiActivator struct {
	cfg CaptureConfig
}

// newPlatformActivator selects WASAPI on Windows
func newPlatformActivator(cfg CaptureConfig) Activator {
	return &wasapiActivator{cfg: cfg}
}

func (a *wasapiActivator) Activate(target CaptureTarget) (Endpoint, error) {
	// CoInitializeEx applies to the calling thread, so keep the
	// goroutine pinned for the setup calls. The multithreaded
	// apartment leaves the returned interfaces callable from the
	// capture goroutine afterwards.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// S_FALSE (already initialized) is fine
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		if oleErr, ok := err.(*ole.OleError); !ok || int32(oleErr.Code()) < 0 {
			return nil, fmt.Errorf("CoInitializeEx: %w", err)
		}
	}

	if target.IsSystemMixer() {
		return a.activateSystemMixer()
	}
	return a.activateProcessLoopback(target)
}

// activateSystemMixer opens the default render endpoint for loopback
// capture at its native mix format
func (a *wasapiActivator) activateSystemMixer() (Endpoint, error) {
	enumerator, err := ole.CreateInstance(clsidMMDeviceEnumerator, iidIMMDeviceEnumerator)
	if err != nil {
		return nil, fmt.Errorf("create MMDeviceEnumerator: %w", err)
	}
	enumPtr := uintptr(unsafe.Pointer(enumerator))

	var device uintptr
	if _, err := comCall(enumPtr, mmdeGetDefaultAudioEndpoint,
		uintptr(eRender), uintptr(eConsole), uintptr(unsafe.Pointer(&device))); err != nil {
		comRelease(enumPtr)
		return nil, fmt.Errorf("GetDefaultAudioEndpoint: %w", err)
	}

	var audioClient uintptr
	if _, err := comCall(device, mmDeviceActivate,
		uintptr(unsafe.Pointer(iidIAudioClient)),
		uintptr(clsctxAll),
		0,
		uintptr(unsafe.Pointer(&audioClient))); err != nil {
		comRelease(device)
		comRelease(enumPtr)
		return nil, fmt.Errorf("Activate IAudioClient: %w", err)
	}

	var mixFormatPtr uintptr
	if _, err := comCall(audioClient, audioClientGetMixFormat,
		uintptr(unsafe.Pointer(&mixFormatPtr))); err != nil {
		comRelease(audioClient)
		comRelease(device)
		comRelease(enumPtr)
		return nil, fmt.Errorf("GetMixFormat: %w", err)
	}
	mixFormat := *(*waveFormatEx)(unsafe.Pointer(mixFormatPtr))

	// 200ms buffer, in 100ns units
	bufferDuration := int64(200 * 10000)
	_, err = comCall(audioClient, audioClientInitialize,
		uintptr(audclntShareModeShared),
		uintptr(audclntStreamLoopback),
		uintptr(bufferDuration),
		0,
		mixFormatPtr, // COM memory, freed after Initialize consumes it
		0,
	)
	procCoTaskMemFree.Call(mixFormatPtr)
	if err != nil {
		comRelease(audioClient)
		comRelease(device)
		comRelease(enumPtr)
		return nil, fmt.Errorf("Initialize loopback: %w", err)
	}

	captureClient, err := getCaptureService(audioClient)
	if err != nil {
		comRelease(audioClient)
		comRelease(device)
		comRelease(enumPtr)
		return nil, err
	}

	return &wasapiEndpoint{
		audioClient:   audioClient,
		captureClient: captureClient,
		device:        device,
		enumerator:    enumPtr,
		format:        formatFromWaveFormat(mixFormat),
	}, nil
}

// activateProcessLoopback issues the asynchronous activation request
// against the virtual process loopback device and blocks until the OS
// delivers the result. The virtual device does not negotiate a format:
// it is fixed at 2-channel 48kHz 32-bit float.
func (a *wasapiActivator) activateProcessLoopback(target CaptureTarget) (Endpoint, error) {
	mode := uint32(loopbackModeIncludeTree)
	if target.Mode == ModeExcludeTree {
		mode = loopbackModeExcludeTree
	}

	params := audioClientActivationParams{
		ActivationType:      activationTypeProcessLoopback,
		TargetProcessID:     target.PID,
		ProcessLoopbackMode: mode,
	}
	propVar := propVariantBlob{
		Vt:       vtBlob,
		BlobSize: uint32(unsafe.Sizeof(params)),
		BlobData: (*byte)(unsafe.Pointer(&params)),
	}

	devicePath, err := syscall.UTF16PtrFromString(virtualLoopbackDevice)
	if err != nil {
		return nil, fmt.Errorf("device path: %w", err)
	}

	handler := newActivateCompletionHandler()
	defer handler.release()

	var asyncOp uintptr
	hr, _, _ := procActivateAudioInterfaceAsync.Call(
		uintptr(unsafe.Pointer(devicePath)),
		uintptr(unsafe.Pointer(iidIAudioClient)),
		uintptr(unsafe.Pointer(&propVar)),
		handler.comPtr(),
		uintptr(unsafe.Pointer(&asyncOp)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("ActivateAudioInterfaceAsync: HRESULT 0x%08X", uint32(hr))
	}
	defer comRelease(asyncOp)

	// The single suspension point: the OS completion callback records
	// the result and wakes us
	audioClient, err := handler.wait()
	if err != nil {
		return nil, err
	}

	format := ProcessLoopbackFormat()
	wf := waveFormatFrom(format)
	if _, err := comCall(audioClient, audioClientInitialize,
		uintptr(audclntShareModeShared),
		uintptr(audclntStreamLoopback),
		0,
		0,
		uintptr(unsafe.Pointer(&wf)),
		0,
	); err != nil {
		comRelease(audioClient)
		return nil, fmt.Errorf("Initialize process loopback: %w", err)
	}

	captureClient, err := getCaptureService(audioClient)
	if err != nil {
		comRelease(audioClient)
		return nil, err
	}

	return &wasapiEndpoint{
		audioClient:   audioClient,
		captureClient: captureClient,
		format:        format,
	}, nil
}

func getCaptureService(audioClient uintptr) (uintptr, error) {
	var captureClient uintptr
	if _, err := comCall(audioClient, audioClientGetService,
		uintptr(unsafe.Pointer(iidIAudioCaptureClient)),
		uintptr(unsafe.Pointer(&captureClient))); err != nil {
		return 0, fmt.Errorf("GetService IAudioCaptureClient: %w", err)
	}
	return captureClient, nil
}

// formatFromWaveFormat maps a WAVEFORMATEX to a CaptureFormat.
// WAVE_FORMAT_EXTENSIBLE at 32 bits is the shared-mode float mix
// format.
func formatFromWaveFormat(wf waveFormatEx) CaptureFormat {
	encoding := EncodingUnknown
	switch {
	case wf.FormatTag == waveFormatIEEEFloat:
		encoding = EncodingIEEEFloat
	case wf.FormatTag == waveFormatExtensible && wf.BitsPerSample == 32:
		encoding = EncodingIEEEFloat
	case wf.FormatTag == waveFormatPCM:
		encoding = EncodingPCM
	}
	return CaptureFormat{
		Channels:      int(wf.Channels),
		SampleRate:    int(wf.SamplesPerSec),
		BitsPerSample: int(wf.BitsPerSample),
		Encoding:      encoding,
	}
}

// waveFormatFrom builds the WAVEFORMATEX for a fixed capture format
func waveFormatFrom(f CaptureFormat) waveFormatEx {
	tag := uint16(waveFormatPCM)
	if f.Encoding == EncodingIEEEFloat {
		tag = waveFormatIEEEFloat
	}
	blockAlign := uint16(f.FrameBytes())
	return waveFormatEx{
		FormatTag:      tag,
		Channels:       uint16(f.Channels),
		SamplesPerSec:  uint32(f.SampleRate),
		AvgBytesPerSec: uint32(f.SampleRate * f.FrameBytes()),
		BlockAlign:     blockAlign,
		BitsPerSample:  uint16(f.BitsPerSample),
	}
}

// wasapiEndpoint is the pull-model boundary over IAudioClient and
// IAudioCaptureClient. Packet data returned by AcquirePacket points at
// the shared WASAPI buffer and is valid only until ReleasePacket.
type wasapiEndpoint struct {
	audioClient   uintptr
	captureClient uintptr
	device        uintptr // 0 for process loopback
	enumerator    uintptr // 0 for process loopback
	format        CaptureFormat
}

func (e *wasapiEndpoint) Format() CaptureFormat {
	return e.format
}

func (e *wasapiEndpoint) Start() error {
	if _, err := comCall(e.audioClient, audioClientStart); err != nil {
		return fmt.Errorf("IAudioClient::Start: %w", err)
	}
	return nil
}

func (e *wasapiEndpoint) Stop() error {
	if _, err := comCall(e.audioClient, audioClientStop); err != nil {
		return fmt.Errorf("IAudioClient::Stop: %w", err)
	}
	return nil
}

func (e *wasapiEndpoint) NextPacketFrames() (int, error) {
	var packetFrames uint32
	if _, err := comCall(e.captureClient, capClientGetNextPacketSize,
		uintptr(unsafe.Pointer(&packetFrames))); err != nil {
		return 0, fmt.Errorf("GetNextPacketSize: %w", err)
	}
	return int(packetFrames), nil
}

func (e *wasapiEndpoint) AcquirePacket() ([]byte, int, bool, error) {
	var dataPtr uintptr
	var frames uint32
	var flags uint32

	if _, err := comCall(e.captureClient, capClientGetBuffer,
		uintptr(unsafe.Pointer(&dataPtr)),
		uintptr(unsafe.Pointer(&frames)),
		uintptr(unsafe.Pointer(&flags)),
		0, // devicePosition
		0, // qpcPosition
	); err != nil {
		return nil, 0, false, fmt.Errorf("GetBuffer: %w", err)
	}

	silent := flags&audclntBufferFlagsSilent != 0

	var data []byte
	if dataPtr != 0 && frames > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(dataPtr)), int(frames)*e.format.FrameBytes())
	}
	return data, int(frames), silent, nil
}

func (e *wasapiEndpoint) ReleasePacket(frames int) error {
	if _, err := comCall(e.captureClient, capClientReleaseBuffer,
		uintptr(frames)); err != nil {
		return fmt.Errorf("ReleaseBuffer: %w", err)
	}
	return nil
}

func (e *wasapiEndpoint) Close() {
	comRelease(e.captureClient)
	comRelease(e.audioClient)
	comRelease(e.device)
	comRelease(e.enumerator)
	e.captureClient = 0
	e.audioClient = 0
	e.device = 0
	e.enumerator = 0
}

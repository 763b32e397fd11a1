//go:build windows

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
)

// IActivateAudioInterfaceCompletionHandler implemented as a pure-Go COM
// object. The OS invokes ActivateCompleted from one of its own worker
// threads; the callback only records the result and wakes the waiter.
var (
	iidActivateCompletionHandler = ole.NewGUID("{41D949AB-9862-444A-80F6-C261334DA5EB}")
	iidAgileObject               = ole.NewGUID("{94EA2B94-E9CC-49E0-C0FF-EE64CA8F5B90}")
)

const (
	hrENoInterface = 0x80004002
	hrEPointer     = 0x80004003
)

type completionOutcome struct {
	audioClient uintptr
	err         error
}

// activateCompletionHandler is the Go side of the COM object. The this
// pointer handed to the OS is the vtblRef field's address, so callbacks
// recover the handler through the registry below.
type activateCompletionHandler struct {
	vtblRef *completionHandlerVtbl
	refs    int32
	done    chan completionOutcome
}

type completionHandlerVtbl struct {
	QueryInterface    uintptr
	AddRef            uintptr
	Release           uintptr
	ActivateCompleted uintptr
}

var (
	handlerVtblOnce sync.Once
	handlerVtbl     completionHandlerVtbl

	handlerMu       sync.Mutex
	handlerRegistry = map[uintptr]*activateCompletionHandler{}
)

func initHandlerVtbl() {
	handlerVtbl = completionHandlerVtbl{
		QueryInterface:    syscall.NewCallback(handlerQueryInterface),
		AddRef:            syscall.NewCallback(handlerAddRef),
		Release:           syscall.NewCallback(handlerRelease),
		ActivateCompleted: syscall.NewCallback(handlerActivateCompleted),
	}
}

func newActivateCompletionHandler() *activateCompletionHandler {
	handlerVtblOnce.Do(initHandlerVtbl)

	h := &activateCompletionHandler{
		vtblRef: &handlerVtbl,
		refs:    1,
		done:    make(chan completionOutcome, 1),
	}

	handlerMu.Lock()
	handlerRegistry[h.comPtr()] = h
	handlerMu.Unlock()
	return h
}

// comPtr returns the address handed to COM as the object's this pointer
func (h *activateCompletionHandler) comPtr() uintptr {
	return uintptr(unsafe.Pointer(&h.vtblRef))
}

// wait blocks until the OS delivers the activation result
func (h *activateCompletionHandler) wait() (uintptr, error) {
	outcome := <-h.done
	return outcome.audioClient, outcome.err
}

// release drops the creator's reference and unregisters the handler
// once the OS has released its own references
func (h *activateCompletionHandler) release() {
	if atomic.AddInt32(&h.refs, -1) <= 0 {
		handlerMu.Lock()
		delete(handlerRegistry, h.comPtr())
		handlerMu.Unlock()
	}
}

func lookupHandler(this uintptr) *activateCompletionHandler {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	return handlerRegistry[this]
}

func handlerQueryInterface(this uintptr, iid *ole.GUID, ppv *uintptr) uintptr {
	if ppv == nil {
		return hrEPointer
	}
	if ole.IsEqualGUID(iid, ole.IID_IUnknown) ||
		ole.IsEqualGUID(iid, iidActivateCompletionHandler) ||
		ole.IsEqualGUID(iid, iidAgileObject) {
		*ppv = this
		handlerAddRef(this)
		return 0 // S_OK
	}
	*ppv = 0
	return hrENoInterface
}

func handlerAddRef(this uintptr) uintptr {
	if h := lookupHandler(this); h != nil {
		return uintptr(atomic.AddInt32(&h.refs, 1))
	}
	return 1
}

func handlerRelease(this uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}
	refs := atomic.AddInt32(&h.refs, -1)
	if refs <= 0 {
		handlerMu.Lock()
		delete(handlerRegistry, this)
		handlerMu.Unlock()
		return 0
	}
	return uintptr(refs)
}

// handlerActivateCompleted records the activation result and wakes the
// waiter. Runs on an OS worker thread; no long work here.
func handlerActivateCompleted(this uintptr, asyncOp uintptr) uintptr {
	h := lookupHandler(this)
	if h == nil {
		return 0
	}

	var activateHR uint32
	var audioClient uintptr
	hr, _, _ := syscall.SyscallN(
		comVtblFn(asyncOp, asyncOpGetActivateResult),
		asyncOp,
		uintptr(unsafe.Pointer(&activateHR)),
		uintptr(unsafe.Pointer(&audioClient)),
	)

	outcome := completionOutcome{audioClient: audioClient}
	switch {
	case int32(hr) < 0:
		outcome.err = fmt.Errorf("GetActivateResult: HRESULT 0x%08X", uint32(hr))
	case int32(activateHR) < 0:
		outcome.err = fmt.Errorf("audio interface activation: HRESULT 0x%08X", activateHR)
	}
	if outcome.err != nil && audioClient != 0 {
		comRelease(audioClient)
		outcome.audioClient = 0
	}

	// Buffered channel: the one-shot send never blocks the OS thread
	select {
	case h.done <- outcome:
	default:
	}
	return 0
}

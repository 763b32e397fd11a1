package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// activationResult carries the outcome of one activation request
type activationResult struct {
	endpoint Endpoint
	err      error
}

// deviceActivation is a one-shot asynchronous handshake with the OS
// audio subsystem: Idle -> Requested -> Completed. The platform's
// completion callback resolves it exactly once; the caller blocks in
// await. This re-expresses the callback-driven native activation as a
// single blocking call with one suspension point.
type deviceActivation struct {
	once sync.Once
	done chan activationResult
}

func newDeviceActivation() *deviceActivation {
	return &deviceActivation{done: make(chan activationResult, 1)}
}

// complete resolves the handshake. Called from the platform completion
// callback, which must not do long work: it only records the result
// and wakes the waiter. Extra calls are ignored.
func (a *deviceActivation) complete(ep Endpoint, err error) {
	a.once.Do(func() {
		a.done <- activationResult{endpoint: ep, err: err}
	})
}

// await blocks until the handshake resolves. A zero timeout waits
// indefinitely: a hung OS callback then blocks Start, which is the
// documented platform behavior. A positive timeout bounds the wait and
// surfaces ErrActivationTimeout instead.
func (a *deviceActivation) await(timeout time.Duration) (Endpoint, error) {
	if timeout <= 0 {
		res := <-a.done
		return res.endpoint, res.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-a.done:
		return res.endpoint, res.err
	case <-timer.C:
		return nil, ErrActivationTimeout
	}
}

// activateEndpoint drives one activation request against the given
// activator and blocks until it resolves or times out. No retry is
// attempted here; retry policy belongs to the caller.
func activateEndpoint(act Activator, target CaptureTarget, timeout time.Duration) (Endpoint, error) {
	handshake := newDeviceActivation()

	go func() {
		ep, err := act.Activate(target)
		handshake.complete(ep, err)
	}()

	ep, err := handshake.await(timeout)
	if err != nil {
		if errors.Is(err, ErrActivationTimeout) {
			// The OS may still deliver a handle after we gave up;
			// release it so it cannot leak.
			go func() {
				if res := <-handshake.done; res.endpoint != nil {
					res.endpoint.Close()
				}
			}()
		}
		return nil, fmt.Errorf("activate %s: %w", target, err)
	}
	return ep, nil
}

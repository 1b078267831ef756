package kernel

import "sync"

// handleState tracks the lifecycle of an exclusive handle.
type handleState int

const (
	handleValid handleState = iota
	handleConsumed
	handleReleased
)

// exclusiveHandle is embedded by move-only resources (Transaction,
// EngineData). Once consumed or released, every further operation fails
// with a checked invalid-handle error rather than undefined behavior.
type exclusiveHandle struct {
	state handleState
	mu    sync.Mutex
}

// use fails unless the handle is still valid. Ownership stays with the
// caller.
func (h *exclusiveHandle) use(what string) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != handleValid {
		return NewError(CodeInvalidHandle, "%s has been %s", what, h.stateName())
	}
	return nil
}

// consume permanently transfers ownership into the callee.
func (h *exclusiveHandle) consume(what string) *Error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != handleValid {
		return NewError(CodeInvalidHandle, "%s has been %s", what, h.stateName())
	}
	h.state = handleConsumed
	return nil
}

// release drops a handle that was never consumed. A second release is a
// detectable error, never silent corruption.
func (h *exclusiveHandle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != handleValid {
		return ErrAlreadyReleased
	}
	h.state = handleReleased
	return nil
}

// stateName is called with the lock held.
func (h *exclusiveHandle) stateName() string {
	switch h.state {
	case handleConsumed:
		return "consumed"
	case handleReleased:
		return "released"
	default:
		return "valid"
	}
}

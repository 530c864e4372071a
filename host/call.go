package host

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libsale-go/account"
)

// Call is a message from one account to another, optionally carrying value
// and encoded method data.
type Call struct {
	Caller      account.Address
	Destination account.Address
	Value       uint256.Int
	Data        []byte
}

// Target is a component that can be addressed by calls. Invoke must be
// all-or-nothing: on error nothing it owns has changed.
type Target interface {
	Invoke(call *Call) error
}

// Router delivers calls to registered targets. Calls to plain accounts
// carry value only.
type Router struct {
	bank Bank

	mu      sync.RWMutex
	targets map[account.Address]Target
}

// NewRouter creates a router that moves plain value through bank.
func NewRouter(bank Bank) *Router {
	return &Router{
		bank:    bank,
		targets: make(map[account.Address]Target),
	}
}

// Register makes t reachable at addr.
func (r *Router) Register(addr account.Address, t Target) error {
	if t == nil {
		return fmt.Errorf("%w: target", ErrNilParam)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.targets[addr]; exists {
		return fmt.Errorf("%w: %s", ErrTargetExists, addr)
	}
	r.targets[addr] = t
	return nil
}

// Dispatch executes call. A registered target handles value itself; for any
// other destination the value is transferred and call data is rejected.
func (r *Router) Dispatch(call *Call) error {
	if call == nil {
		return fmt.Errorf("%w: call", ErrNilParam)
	}
	r.mu.RLock()
	t, ok := r.targets[call.Destination]
	r.mu.RUnlock()

	if ok {
		return t.Invoke(call)
	}
	if len(call.Data) > 0 {
		return fmt.Errorf("%w: %s", ErrNoTarget, call.Destination)
	}
	if call.Value.IsZero() {
		return nil
	}
	return r.bank.Transfer(call.Caller, call.Destination, &call.Value)
}

// RequireNoValue rejects value attached to a non-payable method.
func RequireNoValue(call *Call) error {
	if !call.Value.IsZero() {
		return fmt.Errorf("%w: %s attached", ErrNotPayable, call.Value.Dec())
	}
	return nil
}

// Package multisig implements an M-of-N wallet. Owners propose calls and
// confirm them; a call is dispatched, as the wallet, the moment it gathers
// the required number of confirmations.
package multisig

import (
	"fmt"
	"math"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
)

// Dispatcher delivers an executed operation. host.Router satisfies it.
type Dispatcher interface {
	Dispatch(call *host.Call) error
}

var _ Dispatcher = (*host.Router)(nil)

// Option configures a Wallet.
type Option func(*Wallet)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wallet) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithRegisterer registers the wallet's metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(w *Wallet) { w.registerer = reg }
}

// Wallet is an M-of-N authorization wallet. Owners and threshold are fixed
// at construction.
type Wallet struct {
	address    account.Address
	owners     []account.Address
	isOwner    map[account.Address]bool
	required   int
	dispatcher Dispatcher
	logger     *zap.Logger
	registerer prometheus.Registerer

	confirmations prometheus.Counter
	executions    prometheus.Counter
	failures      prometheus.Counter

	mu    sync.Mutex
	ops   map[OperationID]*Operation
	order []OperationID
}

// New creates a wallet at address. required must be between 1 and the
// number of owners; owners must be distinct and non-zero.
func New(address account.Address, owners []account.Address, required int, dispatcher Dispatcher, opts ...Option) (*Wallet, error) {
	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}
	if required < 1 || required > len(owners) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, required, len(owners))
	}
	isOwner := make(map[account.Address]bool, len(owners))
	for _, o := range owners {
		if o.IsZero() {
			return nil, fmt.Errorf("%w: zero owner", ErrInvalidOwners)
		}
		if isOwner[o] {
			return nil, fmt.Errorf("%w: %s listed twice", ErrInvalidOwners, o)
		}
		isOwner[o] = true
	}

	w := &Wallet{
		address:    address,
		owners:     append([]account.Address(nil), owners...),
		isOwner:    isOwner,
		required:   required,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		ops:        make(map[OperationID]*Operation),
	}
	for _, opt := range opts {
		opt(w)
	}
	factory := promauto.With(w.registerer)
	w.confirmations = factory.NewCounter(prometheus.CounterOpts{
		Name: "multisig_confirmations_total",
		Help: "confirmations recorded",
	})
	w.executions = factory.NewCounter(prometheus.CounterOpts{
		Name: "multisig_executions_total",
		Help: "operations executed",
	})
	w.failures = factory.NewCounter(prometheus.CounterOpts{
		Name: "multisig_execution_failures_total",
		Help: "dispatches that failed and were reverted",
	})
	return w, nil
}

// Address returns the wallet's account.
func (w *Wallet) Address() account.Address { return w.address }

// Owners returns a copy of the owner list.
func (w *Wallet) Owners() []account.Address {
	return append([]account.Address(nil), w.owners...)
}

// Required returns the confirmation threshold.
func (w *Wallet) Required() int { return w.required }

// IsOwner reports whether a is an owner.
func (w *Wallet) IsOwner(a account.Address) bool { return w.isOwner[a] }

// --- Operations ---

// Propose records a new operation without confirming it.
func (w *Wallet) Propose(caller, dest account.Address, value *uint256.Int, payload []byte, nonce uint64) (OperationID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, err := w.proposeLocked(caller, dest, value, payload, nonce)
	if err != nil {
		return OperationID{}, err
	}
	return op.ID, nil
}

// Submit proposes an operation and confirms it on behalf of the proposer.
// If that confirmation executes the operation and the call fails, the
// proposal is discarded as well.
func (w *Wallet) Submit(caller, dest account.Address, value *uint256.Int, payload []byte, nonce uint64) (OperationID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, err := w.proposeLocked(caller, dest, value, payload, nonce)
	if err != nil {
		return OperationID{}, err
	}
	if err := w.confirmLocked(caller, op); err != nil {
		delete(w.ops, op.ID)
		w.order = w.order[:len(w.order)-1]
		return OperationID{}, err
	}
	return op.ID, nil
}

func (w *Wallet) proposeLocked(caller, dest account.Address, value *uint256.Int, payload []byte, nonce uint64) (*Operation, error) {
	if !w.isOwner[caller] {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	if value == nil {
		value = new(uint256.Int)
	}
	id := ComputeOperationID(dest, value, payload, nonce)
	if _, exists := w.ops[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateProposal, id)
	}
	op := &Operation{
		ID:          id,
		Destination: dest,
		Value:       *value,
		Payload:     append([]byte(nil), payload...),
		Nonce:       nonce,
		Proposer:    caller,
	}
	w.ops[id] = op
	w.order = append(w.order, id)
	w.logger.Info("operation proposed",
		zap.Stringer("id", id),
		zap.Stringer("proposer", caller),
		zap.Stringer("destination", dest),
		zap.String("value", value.Dec()),
		zap.Uint64("nonce", nonce))
	return op, nil
}

// Confirm adds caller's confirmation to id. Reaching the threshold
// dispatches the operation within the same call. A failed dispatch
// reverts the confirmation and leaves the operation pending.
func (w *Wallet) Confirm(caller account.Address, id OperationID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isOwner[caller] {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	op, ok := w.ops[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	return w.confirmLocked(caller, op)
}

func (w *Wallet) confirmLocked(caller account.Address, op *Operation) error {
	if op.Executed {
		return fmt.Errorf("%w: %s", ErrAlreadyExecuted, op.ID)
	}
	if op.confirmedBy(caller) {
		return nil
	}
	op.Confirmations = append(op.Confirmations, caller)
	if len(op.Confirmations) < w.required {
		w.confirmations.Inc()
		w.logger.Info("operation confirmed",
			zap.Stringer("id", op.ID),
			zap.Stringer("owner", caller),
			zap.Int("confirmations", len(op.Confirmations)),
			zap.Int("required", w.required))
		return nil
	}

	call := &host.Call{
		Caller:      w.address,
		Destination: op.Destination,
		Value:       op.Value,
		Data:        op.Payload,
	}
	if err := w.dispatcher.Dispatch(call); err != nil {
		op.Confirmations = op.Confirmations[:len(op.Confirmations)-1]
		w.failures.Inc()
		w.logger.Debug("operation dispatch failed", zap.Stringer("id", op.ID), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrExecutionFailed, op.ID, err)
	}
	op.Executed = true
	w.confirmations.Inc()
	w.executions.Inc()
	w.logger.Info("operation executed",
		zap.Stringer("id", op.ID),
		zap.Stringer("owner", caller),
		zap.Stringer("destination", op.Destination))
	return nil
}

// --- Queries ---

// IsConfirmed reports whether id has reached the threshold. Unknown ids
// are not confirmed.
func (w *Wallet) IsConfirmed(id OperationID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.ops[id]
	return ok && len(op.Confirmations) >= w.required
}

// Confirmations returns the owners that confirmed id.
func (w *Wallet) Confirmations(id OperationID) ([]account.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	return append([]account.Address(nil), op.Confirmations...), nil
}

// Operation returns a copy of the operation with the given id.
func (w *Wallet) Operation(id OperationID) (Operation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	op, ok := w.ops[id]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrUnknownOperation, id)
	}
	return op.clone(), nil
}

// Pending lists unexecuted operations in proposal order.
func (w *Wallet) Pending() []OperationID {
	return w.filter(false)
}

// Executed lists executed operations in proposal order.
func (w *Wallet) Executed() []OperationID {
	return w.filter(true)
}

func (w *Wallet) filter(executed bool) []OperationID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]OperationID, 0, len(w.order))
	for _, id := range w.order {
		if w.ops[id].Executed == executed {
			out = append(out, id)
		}
	}
	return out
}

// NextNonce returns one past the highest nonce seen, or zero. Once
// math.MaxUint64 has been used it returns ErrNonceExhausted.
func (w *Wallet) NextNonce() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var next uint64
	for _, op := range w.ops {
		if op.Nonce == math.MaxUint64 {
			return 0, ErrNonceExhausted
		}
		if op.Nonce >= next {
			next = op.Nonce + 1
		}
	}
	return next, nil
}

// --- Snapshot ---

// Snapshot returns copies of all operations in proposal order.
func (w *Wallet) Snapshot() []Operation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Operation, len(w.order))
	for i, id := range w.order {
		out[i] = w.ops[id].clone()
	}
	return out
}

// Restore replaces all operations with ops after checking their ids,
// confirmers and execution state.
func (w *Wallet) Restore(ops []Operation) error {
	restored := make(map[OperationID]*Operation, len(ops))
	order := make([]OperationID, 0, len(ops))
	for i := range ops {
		op := ops[i].clone()
		if ComputeOperationID(op.Destination, &op.Value, op.Payload, op.Nonce) != op.ID {
			return fmt.Errorf("%w: id mismatch for %s", ErrInvalidSnapshot, op.ID)
		}
		if _, dup := restored[op.ID]; dup {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidSnapshot, op.ID)
		}
		seen := make(map[account.Address]bool, len(op.Confirmations))
		for _, c := range op.Confirmations {
			if !w.isOwner[c] || seen[c] {
				return fmt.Errorf("%w: bad confirmation by %s on %s", ErrInvalidSnapshot, c, op.ID)
			}
			seen[c] = true
		}
		if op.Executed != (len(op.Confirmations) >= w.required) {
			return fmt.Errorf("%w: %s has %d confirmations, executed=%t",
				ErrInvalidSnapshot, op.ID, len(op.Confirmations), op.Executed)
		}
		restored[op.ID] = &op
		order = append(order, op.ID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.ops = restored
	w.order = order
	return nil
}

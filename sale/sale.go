// Package sale runs a capped, tiered token sale: signature-gated purchases,
// a pre-start partner allocation, and a vesting table minted at
// construction.
package sale

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/pricing"
	"github.com/bitfsorg/libsale-go/whitelist"
)

// Phase is the lifecycle stage of a sale at a given time.
type Phase int

const (
	Pending Phase = iota
	Active
	Halted
	Ended
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Halted:
		return "halted"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the mutable part of a sale.
type State struct {
	TotalRaised   uint256.Int
	PartnerRaised uint256.Int
	Halted        bool
}

// Option configures a Sale.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	address       account.Address
	ledgerAddress account.Address
	registerer    prometheus.Registerer
}

// WithLogger sets the logger used by the sale and its ledger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAddress sets the sale's own address. The sale mints as this account.
func WithAddress(addr account.Address) Option {
	return func(o *options) { o.address = addr }
}

// WithLedgerAddress sets the address of the ledger the sale creates.
func WithLedgerAddress(addr account.Address) Option {
	return func(o *options) { o.ledgerAddress = addr }
}

// WithRegisterer registers the sale's metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Sale is the purchase state machine. All methods are safe for concurrent use.
type Sale struct {
	cfg      Config
	schedule *pricing.Schedule
	verifier *whitelist.Verifier
	ledger   *ledger.Ledger
	bank     host.Bank
	clock    host.Clock
	logger   *zap.Logger
	metrics  saleMetrics
	address  account.Address

	mu sync.RWMutex
	st State
}

// New validates cfg, creates the token ledger with the sale as minting
// authority and mints the allocation table.
func New(cfg Config, bank host.Bank, clock host.Clock, opts ...Option) (*Sale, error) {
	if bank == nil || clock == nil {
		return nil, fmt.Errorf("%w: bank and clock are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		logger:        zap.NewNop(),
		address:       account.Derive("sale"),
		ledgerAddress: account.Derive("ledger"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	schedule, err := pricing.NewSchedule(cfg.Tiers, cfg.PriceDivisor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	end := schedule.End()
	led, err := ledger.New(ledger.Params{
		MaxSupply:        cfg.MaxSupply,
		MintingAuthority: o.address,
		Payee:            cfg.Payee,
		UnlockTime:       end + cfg.ThawDuration,
		TransferableAt:   end + cfg.TransferLockup,
	}, clock,
		ledger.WithLogger(o.logger.Named("ledger")),
		ledger.WithAddress(o.ledgerAddress))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &Sale{
		cfg:      cfg,
		schedule: schedule,
		verifier: whitelist.NewVerifier(cfg.Signer),
		ledger:   led,
		bank:     bank,
		clock:    clock,
		logger:   o.logger,
		address:  o.address,
	}
	s.metrics.init(o.registerer)

	if len(cfg.Allocations) > 0 {
		grants, err := cfg.allocationAmounts()
		if err != nil {
			return nil, err
		}
		err = led.Update(func(tx *ledger.Tx) error {
			for _, g := range grants {
				if err := tx.Mint(s.address, g.Account, &g.Amount, g.Locked); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAllocation, err)
		}
		s.logger.Info("allocations minted", zap.Int("entries", len(grants)))
	}
	return s, nil
}

// Address returns the sale's own address.
func (s *Sale) Address() account.Address { return s.address }

// Ledger returns the token ledger the sale mints into.
func (s *Sale) Ledger() *ledger.Ledger { return s.ledger }

// Schedule returns the price schedule.
func (s *Sale) Schedule() *pricing.Schedule { return s.schedule }

// Config returns the configuration the sale was built with.
func (s *Sale) Config() Config { return s.cfg }

// Start is the first second of the sale.
func (s *Sale) Start() int64 { return s.schedule.Start() }

// End is the first second after the sale.
func (s *Sale) End() int64 { return s.schedule.End() }

// Phase returns the phase at now.
func (s *Sale) Phase(now int64) Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phaseLocked(now)
}

func (s *Sale) phaseLocked(now int64) Phase {
	switch {
	case now >= s.schedule.End():
		return Ended
	case s.st.Halted:
		return Halted
	case now < s.schedule.Start():
		return Pending
	}
	return Active
}

// TotalRaised returns the value raised so far, partner purchases included.
func (s *Sale) TotalRaised() *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.st.TotalRaised
	return &v
}

// PartnerRaised returns the value raised through partner purchases.
func (s *Sale) PartnerRaised() *uint256.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.st.PartnerRaised
	return &v
}

// Halted reports whether the sale is paused.
func (s *Sale) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Halted
}

// Quote returns the tokens value would buy now.
func (s *Sale) Quote(value *uint256.Int) (*uint256.Int, error) {
	tokens, err := s.schedule.Quote(value, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoActiveTier, err)
	}
	return tokens, nil
}

// Snapshot returns a copy of the sale state.
func (s *Sale) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Restore replaces the sale state after checking it against the caps.
func (s *Sale) Restore(st State) error {
	if st.TotalRaised.Gt(s.cfg.Cap) || st.PartnerRaised.Gt(s.cfg.PartnerCap) || st.PartnerRaised.Gt(&st.TotalRaised) {
		return fmt.Errorf("%w: restored totals %s/%s outside caps",
			ErrCapExceeded, st.TotalRaised.Dec(), st.PartnerRaised.Dec())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
	s.metrics.raised.Set(toFloat(&st.TotalRaised))
	return nil
}

// --- Administration ---

// Halt pauses purchases. Only the payee may halt.
func (s *Sale) Halt(caller account.Address) error {
	return s.setHalted(caller, true)
}

// Unhalt resumes purchases. Only the payee may unhalt.
func (s *Sale) Unhalt(caller account.Address) error {
	return s.setHalted(caller, false)
}

func (s *Sale) setHalted(caller account.Address, halted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.ledger.Payee() {
		return fmt.Errorf("%w: %s is not the administrator", ErrUnauthorized, caller)
	}
	if s.st.Halted != halted {
		s.st.Halted = halted
		s.logger.Info("sale halted state changed", zap.Bool("halted", halted), zap.Stringer("by", caller))
	}
	return nil
}

// ChangePayee replaces the payee on the ledger.
func (s *Sale) ChangePayee(caller, next account.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ChangePayee(caller, next)
}

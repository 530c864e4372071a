// Package deploy assembles a sale, its ledger, an optional multisig wallet
// and the host they run on from a config.Config.
package deploy

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/multisig"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/store"
)

// Well-known component addresses.
var (
	SaleAddress   = account.Derive("sale")
	LedgerAddress = account.Derive("ledger")
	WalletAddress = account.Derive("wallet")
)

// Option configures a Deployment.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers sale and wallet metrics with reg instead of a
// private registry. Only one deployment may be built per registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Deployment is a fully wired sale.
type Deployment struct {
	cfg    config.Config
	clock  host.Clock
	bank   *host.MemBank
	router *host.Router
	sale   *sale.Sale
	wallet *multisig.Wallet
	logger *zap.Logger

	// registry is nil when metrics go to a caller's registerer.
	registry *prometheus.Registry
}

// New validates cfg and builds a fresh deployment: allocations are minted,
// nothing has been raised and the wallet has no operations.
func New(cfg config.Config, clock host.Clock, opts ...Option) (*Deployment, error) {
	if clock == nil {
		return nil, fmt.Errorf("%w: clock", ErrNilParam)
	}
	if err := config.ValidateDeployment(cfg); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	var registry *prometheus.Registry
	if o.registerer == nil {
		registry = prometheus.NewRegistry()
		o.registerer = registry
	}

	d := &Deployment{
		cfg:    cfg,
		clock:  clock,
		bank:     host.NewMemBank(),
		logger:   o.logger,
		registry: registry,
	}
	d.router = host.NewRouter(d.bank)

	payee := cfg.Sale.Payee
	if cfg.Wallet.IsPayee {
		payee = WalletAddress
	}
	sc, err := cfg.SaleParams(payee)
	if err != nil {
		return nil, err
	}
	d.sale, err = sale.New(sc, d.bank, clock,
		sale.WithLogger(o.logger.Named("sale")),
		sale.WithAddress(SaleAddress),
		sale.WithLedgerAddress(LedgerAddress),
		sale.WithRegisterer(o.registerer))
	if err != nil {
		return nil, err
	}
	if err := d.router.Register(SaleAddress, d.sale); err != nil {
		return nil, err
	}
	if err := d.router.Register(LedgerAddress, d.sale.Ledger()); err != nil {
		return nil, err
	}

	if cfg.Wallet.Enabled() {
		d.wallet, err = multisig.New(WalletAddress, cfg.Wallet.Owners, cfg.Wallet.Required, d.router,
			multisig.WithLogger(o.logger.Named("multisig")),
			multisig.WithRegisterer(o.registerer))
		if err != nil {
			return nil, err
		}
	}

	d.logger.Info("deployment assembled",
		zap.Stringer("sale", SaleAddress),
		zap.Stringer("ledger", LedgerAddress),
		zap.Stringer("payee", payee),
		zap.Bool("wallet", d.wallet != nil))
	return d, nil
}

// Metrics returns the deployment's private registry, or nil when metrics
// were registered with WithRegisterer.
func (d *Deployment) Metrics() prometheus.Gatherer {
	if d.registry == nil {
		return nil
	}
	return d.registry
}

// WriteMetrics writes the private registry to path in the text exposition
// format, for a node exporter textfile collector.
func (d *Deployment) WriteMetrics(path string) error {
	if d.registry == nil {
		return ErrNoRegistry
	}
	if err := prometheus.WriteToTextfile(path, d.registry); err != nil {
		return fmt.Errorf("deploy: write metrics: %w", err)
	}
	return nil
}

// Config returns the configuration the deployment was built from.
func (d *Deployment) Config() config.Config { return d.cfg }

// Clock returns the deployment clock.
func (d *Deployment) Clock() host.Clock { return d.clock }

// Bank returns the native value bank.
func (d *Deployment) Bank() *host.MemBank { return d.bank }

// Router returns the call router.
func (d *Deployment) Router() *host.Router { return d.router }

// Sale returns the sale.
func (d *Deployment) Sale() *sale.Sale { return d.sale }

// Ledger returns the token ledger.
func (d *Deployment) Ledger() *ledger.Ledger { return d.sale.Ledger() }

// Wallet returns the multisig wallet or ErrNoWallet.
func (d *Deployment) Wallet() (*multisig.Wallet, error) {
	if d.wallet == nil {
		return nil, ErrNoWallet
	}
	return d.wallet, nil
}

// --- Snapshots ---

// Snapshot captures all mutable state, stamped with now.
func (d *Deployment) Snapshot(now int64) *store.Snapshot {
	snap := &store.Snapshot{
		Ledger:  d.sale.Ledger().Snapshot(),
		Sale:    d.sale.Snapshot(),
		Bank:    d.bank.Balances(),
		SavedAt: now,
	}
	if d.wallet != nil {
		snap.Operations = d.wallet.Snapshot()
	}
	return snap
}

// Restore replaces all mutable state with snap. On error the previous
// state is put back.
func (d *Deployment) Restore(snap *store.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot", ErrNilParam)
	}
	if d.wallet == nil && len(snap.Operations) > 0 {
		return fmt.Errorf("%w: snapshot holds %d wallet operations", ErrNoWallet, len(snap.Operations))
	}
	prev := d.Snapshot(0)
	if err := d.restore(snap); err != nil {
		if rerr := d.restore(prev); rerr != nil {
			d.logger.Error("rollback after failed restore", zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (d *Deployment) restore(snap *store.Snapshot) error {
	if err := d.sale.Ledger().Restore(snap.Ledger); err != nil {
		return fmt.Errorf("deploy: restore ledger: %w", err)
	}
	if err := d.sale.Restore(snap.Sale); err != nil {
		return fmt.Errorf("deploy: restore sale: %w", err)
	}
	if d.wallet != nil {
		if err := d.wallet.Restore(snap.Operations); err != nil {
			return fmt.Errorf("deploy: restore wallet: %w", err)
		}
	}
	d.bank.Restore(snap.Bank)
	return nil
}

// --- Store integration ---

// Init builds a fresh deployment and saves it to st. It refuses to
// overwrite an existing snapshot.
func Init(cfg config.Config, clock host.Clock, st store.Store, opts ...Option) (*Deployment, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	if _, err := st.Load(); err == nil {
		return nil, ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		return nil, err
	}
	d, err := New(cfg, clock, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Save(st); err != nil {
		return nil, err
	}
	return d, nil
}

// Open builds the deployment described by cfg and restores the snapshot
// held by st.
func Open(cfg config.Config, clock host.Clock, st store.Store, opts ...Option) (*Deployment, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	snap, err := st.Load()
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	d, err := New(cfg, clock, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Restore(snap); err != nil {
		return nil, err
	}
	return d, nil
}

// Save writes the current state to st, stamped with the clock.
func (d *Deployment) Save(st store.Store) error {
	return st.Save(d.Snapshot(d.clock.Now()))
}

// Apply runs op at a single clock reading and saves the result. When op
// fails the store is left untouched and in-memory state is reloaded from it.
func (d *Deployment) Apply(st store.Store, op func(d *Deployment) error) error {
	if err := op(d); err != nil {
		snap, lerr := st.Load()
		if lerr == nil {
			if rerr := d.Restore(snap); rerr != nil {
				d.logger.Error("reload after failed operation", zap.Error(rerr))
			}
		}
		return err
	}
	return d.Save(st)
}

package sale

import (
	"errors"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/pricing"
	"github.com/bitfsorg/libsale-go/whitelist"
)

const (
	day  = int64(24 * 3600)
	week = 7 * day
	year = 365 * day
	T    = int64(1_483_839_675)
)

var (
	payee    = account.Derive("payee")
	partner  = account.Derive("partner")
	buyer    = account.Derive("buyer")
	alice    = account.Derive("alice")
	bob      = account.Derive("bob")
	company  = account.Derive("company")
	founder  = account.Derive("founder")
	advisor  = account.Derive("advisor")
	outsider = account.Derive("outsider")
)

// ether returns n × 10^18 base units.
func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

// milliEther returns n × 10^15 base units.
func milliEther(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000))
}

type fixture struct {
	sale   *Sale
	ledger *ledger.Ledger
	bank   *host.MemBank
	clock  *host.ManualClock
	key    *ec.PrivateKey
}

func testConfig(signer account.Address) Config {
	return Config{
		Tiers: []pricing.Tier{
			{Start: T, End: T + week, Rate: 2000},
			{Start: T + week, End: T + 2*week, Rate: 1950},
			{Start: T + 2*week, End: T + 3*week, Rate: 1900},
			{Start: T + 3*week, End: T + 4*week, Rate: 1850},
		},
		PriceDivisor:    1000,
		Cap:             ether(1000),
		PartnerCap:      ether(250),
		Signer:          signer,
		Partner:         partner,
		Payee:           payee,
		MaxPublicSupply: ether(1_000_000),
		MaxSupply:       ether(1_250_000),
		Allocations: []Allocation{
			{Account: company, Stake: 1000},
			{Account: founder, Stake: 445, Locked: true},
			{Account: advisor, Stake: 150, Locked: true},
		},
		StakeDivisor:   10000,
		ThawDuration:   2 * year,
		TransferLockup: week,
	}
}

func newFixture(t *testing.T, mutate func(*Config), opts ...Option) *fixture {
	t.Helper()
	key, err := ec.NewPrivateKey()
	require.NoError(t, err)

	cfg := testConfig(account.FromPublicKey(key.PubKey()))
	if mutate != nil {
		mutate(&cfg)
	}
	bank := host.NewMemBank()
	clock := host.NewManualClock(T - day)
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s, err := New(cfg, bank, clock, opts...)
	require.NoError(t, err)

	for _, a := range []account.Address{buyer, partner, alice} {
		require.NoError(t, bank.Deposit(a, ether(10_000)))
	}
	return &fixture{sale: s, ledger: s.Ledger(), bank: bank, clock: clock, key: key}
}

func (f *fixture) sign(t *testing.T, recipient account.Address) whitelist.Signature {
	t.Helper()
	sig, err := whitelist.Sign(f.key, recipient)
	require.NoError(t, err)
	return sig
}

// unchanged asserts that nothing moved since the snapshot was taken.
func (f *fixture) unchanged(t *testing.T, st State, led ledger.State, bank map[account.Address]uint256.Int) {
	t.Helper()
	assert.Equal(t, st, f.sale.Snapshot())
	assert.Equal(t, led, f.ledger.Snapshot())
	assert.Equal(t, bank, f.bank.Balances())
}

// --- Construction ---

func TestNew_MintsAllocations(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, ether(100_000), f.ledger.BalanceOf(company))
	assert.True(t, f.ledger.LockedBalanceOf(company).IsZero())
	assert.Equal(t, ether(44_500), f.ledger.LockedBalanceOf(founder))
	assert.Equal(t, ether(15_000), f.ledger.LockedBalanceOf(advisor))
	assert.Equal(t, ether(159_500), f.ledger.TotalSupply())
	require.NoError(t, f.ledger.CheckConservation())

	assert.Equal(t, f.sale.Address(), f.ledger.MintingAuthority())
	assert.Equal(t, payee, f.ledger.Payee())
	assert.Equal(t, T+4*week+2*year, f.ledger.UnlockTime())
	assert.Equal(t, T+4*week+week, f.ledger.TransferableAt())
	assert.Equal(t, T, f.sale.Start())
	assert.Equal(t, T+4*week, f.sale.End())
}

func TestNew_InvalidConfig(t *testing.T) {
	key, err := ec.NewPrivateKey()
	require.NoError(t, err)
	signer := account.FromPublicKey(key.PubKey())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no tiers", func(c *Config) { c.Tiers = nil }, pricing.ErrNoTiers},
		{"tier gap", func(c *Config) { c.Tiers[1].Start++ }, pricing.ErrTierGap},
		{"zero divisor", func(c *Config) { c.PriceDivisor = 0 }, pricing.ErrZeroDivisor},
		{"zero cap", func(c *Config) { c.Cap = uint256.NewInt(0) }, ErrInvalidConfig},
		{"partner cap above cap", func(c *Config) { c.PartnerCap = ether(1001) }, ErrInvalidConfig},
		{"no signer", func(c *Config) { c.Signer = account.Zero }, ErrInvalidConfig},
		{"no payee", func(c *Config) { c.Payee = account.Zero }, ErrInvalidConfig},
		{"partner cap without partner", func(c *Config) { c.Partner = account.Zero }, ErrInvalidConfig},
		{"negative thaw", func(c *Config) { c.ThawDuration = -1 }, ErrInvalidConfig},
		{"stakes over divisor", func(c *Config) { c.Allocations[0].Stake = 9500 }, ErrInvalidAllocation},
		{"duplicate allocation", func(c *Config) { c.Allocations[1].Account = company }, ErrInvalidAllocation},
		{"grants over max supply", func(c *Config) { c.MaxSupply = ether(100) }, ErrInvalidAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(signer)
			tt.mutate(&cfg)
			_, err := New(cfg, host.NewMemBank(), host.NewManualClock(0))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAllocationAmounts_StakeTable(t *testing.T) {
	stakes := []uint64{1000, 445, 150, 100, 50, 150, 50, 25, 10, 5, 25, 10, 5}
	allocs := make([]Allocation, len(stakes))
	var sum uint64
	for i, s := range stakes {
		allocs[i] = Allocation{Account: account.Derive(string(rune('a' + i))), Stake: s, Locked: i > 0}
		sum += s
	}

	grants, err := AllocationAmounts(allocs, ether(1_000_000), 10000)
	require.NoError(t, err)
	require.Len(t, grants, len(stakes))
	assert.Equal(t, ether(100_000), &grants[0].Amount)
	assert.False(t, grants[0].Locked)
	assert.Equal(t, ether(44_500), &grants[1].Amount)
	assert.True(t, grants[1].Locked)

	total, err := TotalGranted(grants)
	require.NoError(t, err)
	assert.Equal(t, ether(100*sum), total)
}

func TestAllocationAmounts_Errors(t *testing.T) {
	_, err := AllocationAmounts(nil, ether(1), 0)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = AllocationAmounts([]Allocation{{Account: alice}}, ether(1), 10000)
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = AllocationAmounts([]Allocation{{Stake: 1}}, ether(1), 10000)
	assert.ErrorIs(t, err, ErrInvalidAllocation)
}

// --- Phases ---

func TestPhase(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		ts   int64
		want Phase
	}{
		{T - 1, Pending},
		{T, Active},
		{T + 4*week - 1, Active},
		{T + 4*week, Ended},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.sale.Phase(tt.ts), "at %d", tt.ts)
	}

	require.NoError(t, f.sale.Halt(payee))
	assert.Equal(t, Halted, f.sale.Phase(T-1))
	assert.Equal(t, Halted, f.sale.Phase(T))
	assert.Equal(t, Ended, f.sale.Phase(T+4*week))
	assert.Equal(t, "halted", Halted.String())
}

// --- Purchase ---

func TestPurchase_TierExample(t *testing.T) {
	f := newFixture(t, nil)
	sig := f.sign(t, alice)
	value := milliEther(2100)

	f.clock.Set(T + day/2)
	require.NoError(t, f.sale.Purchase(buyer, alice, value, sig))
	assert.Equal(t, milliEther(4200), f.ledger.BalanceOf(alice))
	assert.Equal(t, value, f.sale.TotalRaised())
	assert.Equal(t, value, f.bank.BalanceOf(payee))
	assert.Equal(t, new(uint256.Int).Sub(ether(10_000), value), f.bank.BalanceOf(buyer))
	require.NoError(t, f.ledger.CheckConservation())

	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()
	f.clock.Set(T + 28*day)
	err := f.sale.Purchase(buyer, alice, value, sig)
	assert.ErrorIs(t, err, ErrPhase)
	assert.ErrorIs(t, err, ErrNotActive)
	f.unchanged(t, st, led, bank)
}

func TestPurchase_RateFollowsTier(t *testing.T) {
	f := newFixture(t, nil)
	sig := f.sign(t, alice)

	f.clock.Set(T + 3*week)
	require.NoError(t, f.sale.Purchase(buyer, alice, ether(2), sig))
	assert.Equal(t, milliEther(3700), f.ledger.BalanceOf(alice))
}

func TestPurchase_BeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	err := f.sale.Purchase(buyer, alice, ether(1), f.sign(t, alice))
	assert.ErrorIs(t, err, ErrNotActive)
	assert.True(t, f.ledger.BalanceOf(alice).IsZero())
}

func TestPurchase_SignatureBoundToRecipient(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()

	err := f.sale.Purchase(buyer, bob, ether(1), f.sign(t, alice))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, whitelist.ErrUnauthorized)
	f.unchanged(t, st, led, bank)
}

func TestPurchase_WrongSigner(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	other, err := ec.NewPrivateKey()
	require.NoError(t, err)
	sig, err := whitelist.Sign(other, alice)
	require.NoError(t, err)

	err = f.sale.Purchase(buyer, alice, ether(1), sig)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPurchase_MalformedSignature(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	sig := f.sign(t, alice)
	sig.S = [32]byte{}

	err := f.sale.Purchase(buyer, alice, ether(1), sig)
	assert.ErrorIs(t, err, whitelist.ErrInvalidSignature)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestPurchase_Cap(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	sig := f.sign(t, alice)

	require.NoError(t, f.sale.Purchase(buyer, alice, ether(999), sig))
	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()

	err := f.sale.Purchase(buyer, alice, new(uint256.Int).AddUint64(ether(1), 1), sig)
	assert.ErrorIs(t, err, ErrCapExceeded)
	f.unchanged(t, st, led, bank)

	require.NoError(t, f.sale.Purchase(buyer, alice, ether(1), sig))
	assert.Equal(t, ether(1000), f.sale.TotalRaised())
}

func TestPurchase_ZeroValue(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	assert.ErrorIs(t, f.sale.Purchase(buyer, alice, uint256.NewInt(0), f.sign(t, alice)), ErrZeroValue)
	assert.ErrorIs(t, f.sale.Purchase(buyer, alice, nil, f.sign(t, alice)), ErrZeroValue)
}

func TestPurchase_PaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()

	// outsider has no native balance.
	err := f.sale.Purchase(outsider, alice, ether(1), f.sign(t, alice))
	assert.ErrorIs(t, err, host.ErrInsufficientFunds)
	f.unchanged(t, st, led, bank)
}

func TestPurchase_SupplyCapRollsBack(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.MaxSupply = new(uint256.Int).Add(ether(159_500), ether(1))
	})
	f.clock.Set(T)
	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()

	err := f.sale.Purchase(buyer, alice, ether(1), f.sign(t, alice))
	assert.ErrorIs(t, err, ledger.ErrSupplyCapExceeded)
	f.unchanged(t, st, led, bank)
}

func TestPurchase_ForwardsToCurrentPayee(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	require.NoError(t, f.sale.ChangePayee(payee, bob))

	require.NoError(t, f.sale.Purchase(buyer, alice, ether(3), f.sign(t, alice)))
	assert.Equal(t, ether(3), f.bank.BalanceOf(bob))
	assert.True(t, f.bank.BalanceOf(payee).IsZero())
}

// --- Halt ---

func TestHalt(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(T)
	sig := f.sign(t, alice)

	assert.ErrorIs(t, f.sale.Halt(outsider), ErrUnauthorized)
	require.NoError(t, f.sale.Halt(payee))
	require.NoError(t, f.sale.Halt(payee))
	assert.True(t, f.sale.Halted())

	err := f.sale.Purchase(buyer, alice, ether(1), sig)
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, ErrPhase)

	assert.ErrorIs(t, f.sale.Unhalt(outsider), ErrUnauthorized)
	require.NoError(t, f.sale.Unhalt(payee))
	require.NoError(t, f.sale.Purchase(buyer, alice, ether(1), sig))
}

// --- Partner purchase ---

func TestPartnerPurchase(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.sale.PartnerPurchase(partner, bob, ether(100)))
	assert.Equal(t, ether(200), f.ledger.BalanceOf(bob))
	assert.Equal(t, ether(100), f.sale.PartnerRaised())
	assert.Equal(t, ether(100), f.sale.TotalRaised())
	assert.Equal(t, ether(100), f.bank.BalanceOf(payee))
	require.NoError(t, f.ledger.CheckConservation())
}

func TestPartnerPurchase_Rejections(t *testing.T) {
	f := newFixture(t, nil)

	err := f.sale.PartnerPurchase(buyer, bob, ether(1))
	assert.ErrorIs(t, err, ErrNotPartner)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.sale.PartnerPurchase(partner, bob, ether(250)))
	st, led, bank := f.sale.Snapshot(), f.ledger.Snapshot(), f.bank.Balances()
	assert.ErrorIs(t, f.sale.PartnerPurchase(partner, bob, uint256.NewInt(1)), ErrCapExceeded)
	f.unchanged(t, st, led, bank)

	require.NoError(t, f.sale.Halt(payee))
	assert.ErrorIs(t, f.sale.PartnerPurchase(partner, bob, uint256.NewInt(1)), ErrHalted)
	require.NoError(t, f.sale.Unhalt(payee))

	f.clock.Set(T)
	err = f.sale.PartnerPurchase(partner, bob, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrNotBeforeStart)
	assert.ErrorIs(t, err, ErrPhase)
}

func TestPartnerPurchase_CountsTowardGlobalCap(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Cap = ether(300)
	})
	require.NoError(t, f.sale.PartnerPurchase(partner, bob, ether(200)))

	f.clock.Set(T)
	sig := f.sign(t, alice)
	assert.ErrorIs(t, f.sale.Purchase(buyer, alice, ether(101), sig), ErrCapExceeded)
	require.NoError(t, f.sale.Purchase(buyer, alice, ether(100), sig))
	assert.Equal(t, ether(300), f.sale.TotalRaised())
}

// --- Invariants ---

func TestRaisedNeverExceedsCap(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Cap = ether(50); c.PartnerCap = ether(10) })
	sig := f.sign(t, alice)

	for i := uint64(1); i <= 12; i++ {
		_ = f.sale.PartnerPurchase(partner, alice, ether(i))
		assert.False(t, f.sale.PartnerRaised().Gt(ether(10)))
	}
	f.clock.Set(T)
	for i := uint64(1); i <= 20; i++ {
		_ = f.sale.Purchase(buyer, alice, ether(i), sig)
		f.clock.Advance(day)
		assert.False(t, f.sale.TotalRaised().Gt(ether(50)))
		require.NoError(t, f.ledger.CheckConservation())
	}
}

// --- Snapshot ---

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sale.PartnerPurchase(partner, bob, ether(5)))
	require.NoError(t, f.sale.Halt(payee))
	snap := f.sale.Snapshot()

	g := newFixture(t, nil)
	require.NoError(t, g.sale.Restore(snap))
	assert.Equal(t, ether(5), g.sale.TotalRaised())
	assert.True(t, g.sale.Halted())

	bad := snap
	bad.TotalRaised = *ether(2000)
	assert.ErrorIs(t, g.sale.Restore(bad), ErrCapExceeded)
}

// --- Invoke ---

func TestInvoke(t *testing.T) {
	f := newFixture(t, nil)

	partnerCall := &host.Call{
		Caller:      partner,
		Destination: f.sale.Address(),
		Value:       *ether(2),
		Data:        host.EncodeCall(SelPartnerPurchase, host.AddressWord(bob)),
	}
	require.NoError(t, f.sale.Invoke(partnerCall))
	assert.Equal(t, ether(4), f.ledger.BalanceOf(bob))

	f.clock.Set(T)
	buy := &host.Call{
		Caller:      buyer,
		Destination: f.sale.Address(),
		Value:       *ether(1),
		Data:        PurchaseCall(alice, f.sign(t, alice)),
	}
	require.NoError(t, f.sale.Invoke(buy))
	assert.Equal(t, ether(2), f.ledger.BalanceOf(alice))

	halt := &host.Call{Caller: payee, Destination: f.sale.Address(), Data: host.EncodeCall(SelHalt)}
	require.NoError(t, f.sale.Invoke(halt))
	assert.True(t, f.sale.Halted())

	unhalt := &host.Call{Caller: payee, Destination: f.sale.Address(), Data: host.EncodeCall(SelUnhalt)}
	require.NoError(t, f.sale.Invoke(unhalt))
	assert.False(t, f.sale.Halted())

	change := &host.Call{Caller: payee, Destination: f.sale.Address(), Data: host.EncodeCall(SelChangePayee, host.AddressWord(alice))}
	require.NoError(t, f.sale.Invoke(change))
	assert.Equal(t, alice, f.ledger.Payee())
}

func TestInvoke_Errors(t *testing.T) {
	f := newFixture(t, nil)

	paidHalt := &host.Call{Caller: payee, Value: *ether(1), Data: host.EncodeCall(SelHalt)}
	assert.ErrorIs(t, f.sale.Invoke(paidHalt), host.ErrNotPayable)
	assert.False(t, f.sale.Halted())

	unknown := &host.Call{Caller: payee, Data: host.EncodeCall(host.MethodSelector("finalize()"))}
	assert.ErrorIs(t, f.sale.Invoke(unknown), host.ErrUnknownMethod)

	var badV host.Word
	badV[0] = 1
	data := host.EncodeCall(SelPurchase, host.AddressWord(alice), badV, host.Word{}, host.Word{})
	assert.ErrorIs(t, f.sale.Invoke(&host.Call{Caller: buyer, Data: data}), host.ErrMalformedCall)
}

// --- Metrics ---

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, nil, WithRegisterer(reg))

	require.NoError(t, f.sale.PartnerPurchase(partner, bob, ether(1)))
	assert.Error(t, f.sale.PartnerPurchase(buyer, bob, ether(1)))

	families, err := reg.Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, got["sale_purchases_total"])
	assert.Equal(t, 1.0, got["sale_rejections_total"])
	assert.Equal(t, 1e18, got["sale_raised"])
}

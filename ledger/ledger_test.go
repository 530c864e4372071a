package ledger

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
)

var (
	minter = account.Derive("minter")
	payee  = account.Derive("payee")
	alice  = account.Derive("alice")
	bob    = account.Derive("bob")
	carol  = account.Derive("carol")
)

const (
	unlockAt   = 2000
	transferAt = 1500
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newLedger(t *testing.T, clock *host.ManualClock) *Ledger {
	t.Helper()
	l, err := New(Params{
		MaxSupply:        u(1000),
		MintingAuthority: minter,
		Payee:            payee,
		UnlockTime:       unlockAt,
		TransferableAt:   transferAt,
	}, clock, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return l
}

func requireConserved(t *testing.T, l *Ledger) {
	t.Helper()
	require.NoError(t, l.CheckConservation())
}

// --- Construction ---

func TestNew_Validation(t *testing.T) {
	clock := host.NewManualClock(0)
	tests := []struct {
		name   string
		params Params
		clock  host.Clock
		want   error
	}{
		{"nil max", Params{MintingAuthority: minter, Payee: payee}, clock, ErrInvalidParams},
		{"zero max", Params{MaxSupply: u(0), MintingAuthority: minter, Payee: payee}, clock, ErrInvalidParams},
		{"zero minter", Params{MaxSupply: u(1), Payee: payee}, clock, ErrZeroAddress},
		{"zero payee", Params{MaxSupply: u(1), MintingAuthority: minter}, clock, ErrZeroAddress},
		{"nil clock", Params{MaxSupply: u(1), MintingAuthority: minter, Payee: payee}, nil, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.params, tt.clock)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_Accessors(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	assert.Equal(t, minter, l.MintingAuthority())
	assert.Equal(t, payee, l.Payee())
	assert.Equal(t, int64(unlockAt), l.UnlockTime())
	assert.Equal(t, int64(transferAt), l.TransferableAt())
	assert.Equal(t, uint64(1000), l.MaxSupply().Uint64())
	assert.True(t, l.TotalSupply().IsZero())
	assert.Equal(t, account.Derive("ledger"), l.Address())
}

// --- Mint ---

func TestMint(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))

	require.NoError(t, l.Mint(minter, alice, u(300), false))
	require.NoError(t, l.Mint(minter, bob, u(200), true))
	assert.Equal(t, uint64(300), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(200), l.LockedBalanceOf(bob).Uint64())
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.Equal(t, uint64(500), l.TotalSupply().Uint64())
	requireConserved(t, l)
}

func TestMint_Unauthorized(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	err := l.Mint(alice, alice, u(1), false)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, l.TotalSupply().IsZero())
}

func TestMint_SupplyCap(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	require.NoError(t, l.Mint(minter, alice, u(1000), false))

	err := l.Mint(minter, alice, u(1), false)
	assert.ErrorIs(t, err, ErrSupplyCapExceeded)
	assert.Equal(t, uint64(1000), l.TotalSupply().Uint64())

	huge := new(uint256.Int).SetAllOne()
	err = l.Mint(minter, alice, huge, false)
	assert.ErrorIs(t, err, ErrSupplyCapExceeded)
	requireConserved(t, l)
}

func TestMint_NilAmount(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	assert.ErrorIs(t, l.Mint(minter, alice, nil, false), ErrNilAmount)
}

// --- Unlock ---

func TestUnlock(t *testing.T) {
	clock := host.NewManualClock(0)
	l := newLedger(t, clock)
	require.NoError(t, l.Mint(minter, alice, u(50), false))
	require.NoError(t, l.Mint(minter, alice, u(100), true))

	clock.Set(unlockAt - 1)
	err := l.Unlock(payee, alice)
	assert.ErrorIs(t, err, ErrTooEarly)
	assert.Equal(t, uint64(100), l.LockedBalanceOf(alice).Uint64())

	clock.Set(unlockAt)
	assert.ErrorIs(t, l.Unlock(alice, alice), ErrUnauthorized)

	require.NoError(t, l.Unlock(payee, alice))
	assert.Equal(t, uint64(150), l.BalanceOf(alice).Uint64())
	assert.True(t, l.LockedBalanceOf(alice).IsZero())
	requireConserved(t, l)

	// Nothing left to release.
	require.NoError(t, l.Unlock(payee, alice))
	assert.Equal(t, uint64(150), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(150), l.TotalSupply().Uint64())
}

// --- Transfer ---

func TestTransfer_Lockup(t *testing.T) {
	clock := host.NewManualClock(0)
	l := newLedger(t, clock)
	require.NoError(t, l.Mint(minter, alice, u(100), false))

	clock.Set(transferAt - 1)
	assert.ErrorIs(t, l.Transfer(alice, bob, u(10)), ErrTransferRestricted)

	clock.Set(transferAt)
	require.NoError(t, l.Transfer(alice, bob, u(10)))
	assert.Equal(t, uint64(90), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(10), l.BalanceOf(bob).Uint64())
	requireConserved(t, l)
}

func TestTransfer_RestrictionCheckedFirst(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	// alice holds nothing, the lockup is still reported.
	assert.ErrorIs(t, l.Transfer(alice, bob, u(10)), ErrTransferRestricted)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(5), false))
	require.NoError(t, l.Mint(minter, alice, u(100), true))

	// Locked tokens are not spendable.
	err := l.Transfer(alice, bob, u(6))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(5), l.BalanceOf(alice).Uint64())
	assert.True(t, l.BalanceOf(bob).IsZero())
}

func TestTransfer_SelfAndZero(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(5), false))

	require.NoError(t, l.Transfer(alice, alice, u(5)))
	require.NoError(t, l.Transfer(alice, bob, u(0)))
	assert.Equal(t, uint64(5), l.BalanceOf(alice).Uint64())
	requireConserved(t, l)
}

// --- Allowances ---

func TestApproveTransferFrom(t *testing.T) {
	clock := host.NewManualClock(0)
	l := newLedger(t, clock)
	require.NoError(t, l.Mint(minter, alice, u(100), false))
	require.NoError(t, l.Approve(alice, bob, u(30)))
	assert.Equal(t, uint64(30), l.Allowance(alice, bob).Uint64())

	assert.ErrorIs(t, l.TransferFrom(bob, alice, carol, u(10)), ErrTransferRestricted)

	clock.Set(transferAt)
	require.NoError(t, l.TransferFrom(bob, alice, carol, u(10)))
	assert.Equal(t, uint64(20), l.Allowance(alice, bob).Uint64())
	assert.Equal(t, uint64(10), l.BalanceOf(carol).Uint64())

	err := l.TransferFrom(bob, alice, carol, u(21))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.Equal(t, uint64(20), l.Allowance(alice, bob).Uint64())
	requireConserved(t, l)
}

func TestTransferFrom_FailedMoveKeepsAllowance(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(5), false))
	require.NoError(t, l.Approve(alice, bob, u(50)))

	err := l.TransferFrom(bob, alice, carol, u(10))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(50), l.Allowance(alice, bob).Uint64())
}

// --- Roles ---

func TestChangeMintingAuthority(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))

	assert.ErrorIs(t, l.ChangeMintingAuthority(alice, alice), ErrUnauthorized)
	assert.ErrorIs(t, l.ChangeMintingAuthority(minter, account.Zero), ErrZeroAddress)

	require.NoError(t, l.ChangeMintingAuthority(minter, alice))
	assert.Equal(t, alice, l.MintingAuthority())
	assert.ErrorIs(t, l.Mint(minter, bob, u(1), false), ErrUnauthorized)
	require.NoError(t, l.Mint(alice, bob, u(1), false))

	// The payee can always reassign the minter.
	require.NoError(t, l.ChangeMintingAuthority(payee, carol))
	assert.Equal(t, carol, l.MintingAuthority())
}

func TestChangePayee(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))

	assert.ErrorIs(t, l.ChangePayee(alice, alice), ErrUnauthorized)
	assert.ErrorIs(t, l.ChangePayee(payee, account.Zero), ErrZeroAddress)

	require.NoError(t, l.ChangePayee(payee, alice))
	assert.Equal(t, alice, l.Payee())
	assert.ErrorIs(t, l.ChangePayee(payee, bob), ErrUnauthorized)
}

// --- Transactions ---

func TestUpdate_RollsBackOnError(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(100), false))

	boom := errors.New("boom")
	err := l.Update(func(tx *Tx) error {
		require.NoError(t, tx.Mint(minter, bob, u(400), false))
		require.NoError(t, tx.Transfer(alice, carol, u(60)))
		require.NoError(t, tx.ChangePayee(payee, bob))

		// Staged values are visible inside the transaction.
		assert.Equal(t, uint64(500), tx.TotalSupply().Uint64())
		assert.Equal(t, uint64(40), tx.BalanceOf(alice).Uint64())
		assert.Equal(t, bob, tx.Payee())
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(100), l.TotalSupply().Uint64())
	assert.Equal(t, uint64(100), l.BalanceOf(alice).Uint64())
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.True(t, l.BalanceOf(carol).IsZero())
	assert.Equal(t, payee, l.Payee())
	requireConserved(t, l)
}

func TestTx_ReadersReturnCopies(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(100), false))

	err := l.Update(func(tx *Tx) error {
		require.NoError(t, tx.Mint(minter, bob, u(30), true))
		require.NoError(t, tx.Approve(alice, carol, u(7)))

		bal := tx.BalanceOf(alice)
		locked := tx.LockedBalanceOf(bob)
		allowance := tx.Allowance(alice, carol)
		supply := tx.TotalSupply()
		assert.Equal(t, uint64(100), bal.Uint64())
		assert.Equal(t, uint64(30), locked.Uint64())
		assert.Equal(t, uint64(7), allowance.Uint64())
		assert.Equal(t, uint64(130), supply.Uint64())

		bal.SetUint64(1)
		locked.SetUint64(1)
		allowance.SetUint64(1)
		supply.SetUint64(1)
		assert.Equal(t, uint64(100), tx.BalanceOf(alice).Uint64())
		assert.Equal(t, uint64(30), tx.LockedBalanceOf(bob).Uint64())
		assert.Equal(t, uint64(7), tx.Allowance(alice, carol).Uint64())
		assert.Equal(t, uint64(130), tx.TotalSupply().Uint64())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(130), l.TotalSupply().Uint64())
	requireConserved(t, l)
}

func TestUpdateAt_UsesGivenTime(t *testing.T) {
	clock := host.NewManualClock(0)
	l := newLedger(t, clock)
	require.NoError(t, l.Mint(minter, alice, u(10), true))

	err := l.UpdateAt(unlockAt, func(tx *Tx) error {
		assert.Equal(t, int64(unlockAt), tx.Now())
		return tx.Unlock(payee, alice)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(10), l.BalanceOf(alice).Uint64())
}

func TestConservation_RandomSequence(t *testing.T) {
	clock := host.NewManualClock(0)
	l := newLedger(t, clock)
	holders := []account.Address{alice, bob, carol}

	for i := 0; i < 60; i++ {
		h := holders[i%len(holders)]
		_ = l.Mint(minter, h, u(uint64(i%7)), i%2 == 0)
		if i == 30 {
			clock.Set(unlockAt)
		}
		if clock.Now() >= unlockAt {
			_ = l.Unlock(payee, h)
			_ = l.Transfer(h, holders[(i+1)%len(holders)], u(uint64(i%5)))
		}
		requireConserved(t, l)
	}
}

// --- Snapshot ---

func TestSnapshotRestore(t *testing.T) {
	l := newLedger(t, host.NewManualClock(transferAt))
	require.NoError(t, l.Mint(minter, alice, u(100), false))
	require.NoError(t, l.Mint(minter, bob, u(50), true))
	require.NoError(t, l.Approve(alice, carol, u(7)))

	snap := l.Snapshot()
	require.NoError(t, l.Transfer(alice, carol, u(100)))

	// Mutating the snapshot must not affect the ledger.
	snap2 := l.Snapshot()
	snap2.Balances[alice] = *u(999)
	assert.True(t, l.BalanceOf(alice).IsZero())

	require.NoError(t, l.Restore(snap))
	assert.Equal(t, uint64(100), l.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(50), l.LockedBalanceOf(bob).Uint64())
	assert.Equal(t, uint64(7), l.Allowance(alice, carol).Uint64())
	assert.True(t, l.BalanceOf(carol).IsZero())
}

func TestRestore_RejectsBrokenState(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))
	snap := l.Snapshot()
	snap.Balances[alice] = *u(1)
	assert.ErrorIs(t, l.Restore(snap), ErrConservationViolated)

	snap = l.Snapshot()
	snap.Payee = account.Zero
	assert.ErrorIs(t, l.Restore(snap), ErrZeroAddress)
}

// --- Invoke ---

func TestInvoke(t *testing.T) {
	clock := host.NewManualClock(unlockAt)
	l := newLedger(t, clock)
	require.NoError(t, l.Mint(minter, alice, u(40), true))

	call := func(caller account.Address, data []byte) *host.Call {
		return &host.Call{Caller: caller, Destination: l.Address(), Data: data}
	}

	require.NoError(t, l.Invoke(call(payee, host.EncodeCall(SelUnlock, host.AddressWord(alice)))))
	assert.Equal(t, uint64(40), l.BalanceOf(alice).Uint64())

	require.NoError(t, l.Invoke(call(alice, host.EncodeCall(SelTransfer, host.AddressWord(bob), host.AmountWord(u(15))))))
	assert.Equal(t, uint64(15), l.BalanceOf(bob).Uint64())

	require.NoError(t, l.Invoke(call(alice, host.EncodeCall(SelApprove, host.AddressWord(carol), host.AmountWord(u(3))))))
	assert.Equal(t, uint64(3), l.Allowance(alice, carol).Uint64())

	require.NoError(t, l.Invoke(call(payee, host.EncodeCall(SelChangeMintingAuthority, host.AddressWord(carol)))))
	assert.Equal(t, carol, l.MintingAuthority())

	require.NoError(t, l.Invoke(call(payee, host.EncodeCall(SelChangePayee, host.AddressWord(bob)))))
	assert.Equal(t, bob, l.Payee())
}

func TestInvoke_Errors(t *testing.T) {
	l := newLedger(t, host.NewManualClock(0))

	paid := &host.Call{Caller: payee, Value: *u(1), Data: host.EncodeCall(SelChangePayee, host.AddressWord(bob))}
	assert.ErrorIs(t, l.Invoke(paid), host.ErrNotPayable)

	unknown := &host.Call{Caller: payee, Data: host.EncodeCall(host.MethodSelector("mint(address,uint256)"))}
	assert.ErrorIs(t, l.Invoke(unknown), host.ErrUnknownMethod)

	short := &host.Call{Caller: payee, Data: host.EncodeCall(SelTransfer, host.AddressWord(bob))}
	assert.ErrorIs(t, l.Invoke(short), host.ErrMalformedCall)

	var dirty host.Word
	dirty[0] = 1
	bad := &host.Call{Caller: payee, Data: host.EncodeCall(SelChangePayee, dirty)}
	assert.ErrorIs(t, l.Invoke(bad), host.ErrMalformedCall)

	denied := &host.Call{Caller: alice, Data: host.EncodeCall(SelChangePayee, host.AddressWord(bob))}
	assert.ErrorIs(t, l.Invoke(denied), ErrUnauthorized)
}

package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/multisig"
	"github.com/bitfsorg/libsale-go/sale"
)

var (
	bucketBalances   = []byte("balances")
	bucketLocked     = []byte("locked")
	bucketAllowances = []byte("allowances")
	bucketBank       = []byte("bank")
	bucketOps        = []byte("ops")
	bucketSale       = []byte("sale")
	bucketMeta       = []byte("meta")

	allBuckets = [][]byte{
		bucketBalances, bucketLocked, bucketAllowances, bucketBank,
		bucketOps, bucketSale, bucketMeta,
	}

	keyLedger        = []byte("ledger")
	keySavedAt       = []byte("saved_at")
	keyTotalRaised   = []byte("total_raised")
	keyPartnerRaised = []byte("partner_raised")
	keyHalted        = []byte("halted")
)

// ledgerMeta holds the scalar part of the ledger state.
type ledgerMeta struct {
	TotalSupply      [32]byte
	MaxSupply        [32]byte
	MintingAuthority account.Address
	Payee            account.Address
	UnlockTime       int64
	TransferableAt   int64
}

// opRecord is the stored form of a wallet operation.
type opRecord struct {
	ID            multisig.OperationID
	Destination   account.Address
	Value         [32]byte
	Payload       []byte
	Nonce         uint64
	Proposer      account.Address
	Confirmations []account.Address
	Executed      bool
}

// BoltStore persists snapshots in a bbolt database, one bucket per table.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Save rewrites every bucket from snap in a single transaction.
func (s *BoltStore) Save(snap *Snapshot) error {
	if snap == nil {
		return ErrNilParam
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := make(map[string]*bbolt.Bucket, len(allBuckets))
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("store: reset bucket %q: %w", name, err)
			}
			b, err := tx.CreateBucket(name)
			if err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
			buckets[string(name)] = b
		}

		if err := putAmounts(buckets[string(bucketBalances)], snap.Ledger.Balances); err != nil {
			return err
		}
		if err := putAmounts(buckets[string(bucketLocked)], snap.Ledger.Locked); err != nil {
			return err
		}
		if err := putAmounts(buckets[string(bucketBank)], snap.Bank); err != nil {
			return err
		}
		allowances := buckets[string(bucketAllowances)]
		for k, v := range snap.Ledger.Allowances {
			if err := allowances.Put(allowanceKey(k), amountBytes(&v)); err != nil {
				return fmt.Errorf("store: put allowance: %w", err)
			}
		}

		ops := buckets[string(bucketOps)]
		for i, op := range snap.Operations {
			data, err := encodeGob(opRecord{
				ID:            op.ID,
				Destination:   op.Destination,
				Value:         op.Value.Bytes32(),
				Payload:       op.Payload,
				Nonce:         op.Nonce,
				Proposer:      op.Proposer,
				Confirmations: op.Confirmations,
				Executed:      op.Executed,
			})
			if err != nil {
				return fmt.Errorf("store: encode operation: %w", err)
			}
			if err := ops.Put(seqKey(uint64(i)), data); err != nil {
				return fmt.Errorf("store: put operation: %w", err)
			}
		}

		sb := buckets[string(bucketSale)]
		halted := []byte{0}
		if snap.Sale.Halted {
			halted[0] = 1
		}
		for key, val := range map[string][]byte{
			string(keyTotalRaised):   amountBytes(&snap.Sale.TotalRaised),
			string(keyPartnerRaised): amountBytes(&snap.Sale.PartnerRaised),
			string(keyHalted):        halted,
		} {
			if err := sb.Put([]byte(key), val); err != nil {
				return fmt.Errorf("store: put sale %s: %w", key, err)
			}
		}

		meta, err := encodeGob(ledgerMeta{
			TotalSupply:      snap.Ledger.TotalSupply.Bytes32(),
			MaxSupply:        snap.Ledger.MaxSupply.Bytes32(),
			MintingAuthority: snap.Ledger.MintingAuthority,
			Payee:            snap.Ledger.Payee,
			UnlockTime:       snap.Ledger.UnlockTime,
			TransferableAt:   snap.Ledger.TransferableAt,
		})
		if err != nil {
			return fmt.Errorf("store: encode ledger meta: %w", err)
		}
		mb := buckets[string(bucketMeta)]
		if err := mb.Put(keyLedger, meta); err != nil {
			return fmt.Errorf("store: put ledger meta: %w", err)
		}
		if err := mb.Put(keySavedAt, seqKey(uint64(snap.SavedAt))); err != nil {
			return fmt.Errorf("store: put saved_at: %w", err)
		}
		return nil
	})
}

// Load reads the stored snapshot.
func (s *BoltStore) Load() (*Snapshot, error) {
	snap := &Snapshot{
		Ledger: ledger.State{
			Allowances: make(map[ledger.AllowanceKey]uint256.Int),
		},
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		mb := tx.Bucket(bucketMeta)
		data := mb.Get(keyLedger)
		if data == nil {
			return ErrNoSnapshot
		}
		var meta ledgerMeta
		if err := decodeGob(data, &meta); err != nil {
			return fmt.Errorf("%w: ledger meta: %w", ErrCorrupt, err)
		}
		snap.Ledger.TotalSupply.SetBytes32(meta.TotalSupply[:])
		snap.Ledger.MaxSupply.SetBytes32(meta.MaxSupply[:])
		snap.Ledger.MintingAuthority = meta.MintingAuthority
		snap.Ledger.Payee = meta.Payee
		snap.Ledger.UnlockTime = meta.UnlockTime
		snap.Ledger.TransferableAt = meta.TransferableAt
		if v := mb.Get(keySavedAt); len(v) == 8 {
			snap.SavedAt = int64(binary.BigEndian.Uint64(v))
		}

		var err error
		if snap.Ledger.Balances, err = getAmounts(tx.Bucket(bucketBalances)); err != nil {
			return err
		}
		if snap.Ledger.Locked, err = getAmounts(tx.Bucket(bucketLocked)); err != nil {
			return err
		}
		if snap.Bank, err = getAmounts(tx.Bucket(bucketBank)); err != nil {
			return err
		}
		err = tx.Bucket(bucketAllowances).ForEach(func(k, v []byte) error {
			if len(k) != 2*account.Size || len(v) != 32 {
				return fmt.Errorf("%w: allowance entry", ErrCorrupt)
			}
			var key ledger.AllowanceKey
			copy(key.Owner[:], k[:account.Size])
			copy(key.Spender[:], k[account.Size:])
			snap.Ledger.Allowances[key] = *new(uint256.Int).SetBytes32(v)
			return nil
		})
		if err != nil {
			return err
		}

		// Keys are big-endian sequence numbers, so ForEach yields proposal order.
		err = tx.Bucket(bucketOps).ForEach(func(_, v []byte) error {
			var rec opRecord
			if err := decodeGob(v, &rec); err != nil {
				return fmt.Errorf("%w: operation: %w", ErrCorrupt, err)
			}
			snap.Operations = append(snap.Operations, multisig.Operation{
				ID:            rec.ID,
				Destination:   rec.Destination,
				Value:         *new(uint256.Int).SetBytes32(rec.Value[:]),
				Payload:       rec.Payload,
				Nonce:         rec.Nonce,
				Proposer:      rec.Proposer,
				Confirmations: rec.Confirmations,
				Executed:      rec.Executed,
			})
			return nil
		})
		if err != nil {
			return err
		}

		sb := tx.Bucket(bucketSale)
		snap.Sale = sale.State{Halted: bytes.Equal(sb.Get(keyHalted), []byte{1})}
		if v := sb.Get(keyTotalRaised); len(v) == 32 {
			snap.Sale.TotalRaised.SetBytes32(v)
		}
		if v := sb.Get(keyPartnerRaised); len(v) == 32 {
			snap.Sale.PartnerRaised.SetBytes32(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func putAmounts(b *bbolt.Bucket, m map[account.Address]uint256.Int) error {
	for a, v := range m {
		if v.IsZero() {
			continue
		}
		if err := b.Put(a.Bytes(), amountBytes(&v)); err != nil {
			return fmt.Errorf("store: put %s: %w", a, err)
		}
	}
	return nil
}

func getAmounts(b *bbolt.Bucket) (map[account.Address]uint256.Int, error) {
	out := make(map[account.Address]uint256.Int)
	err := b.ForEach(func(k, v []byte) error {
		a, err := account.FromBytes(k)
		if err != nil || len(v) != 32 {
			return fmt.Errorf("%w: balance entry", ErrCorrupt)
		}
		out[a] = *new(uint256.Int).SetBytes32(v)
		return nil
	})
	return out, err
}

func amountBytes(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func allowanceKey(k ledger.AllowanceKey) []byte {
	key := make([]byte, 0, 2*account.Size)
	key = append(key, k.Owner[:]...)
	return append(key, k.Spender[:]...)
}

// seqKey encodes n as an 8-byte big-endian key for ordered iteration.
func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

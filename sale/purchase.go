package sale

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/ledger"
	"github.com/bitfsorg/libsale-go/whitelist"
)

// Purchase buys tokens for recipient with value paid by payer. The
// signature must authorise recipient. Value goes to the payee and the
// tokens are minted spendable; either both happen or neither does.
func (s *Sale) Purchase(payer, recipient account.Address, value *uint256.Int, sig whitelist.Signature) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.purchaseLocked(now, payer, recipient, value, sig)
	if err != nil {
		s.reject("purchase", err, zap.Stringer("recipient", recipient))
	}
	return err
}

func (s *Sale) purchaseLocked(now int64, payer, recipient account.Address, value *uint256.Int, sig whitelist.Signature) error {
	if value == nil {
		return ErrZeroValue
	}
	switch s.phaseLocked(now) {
	case Active:
	case Halted:
		return ErrHalted
	default:
		return fmt.Errorf("%w: now %d, window [%d, %d)", ErrNotActive, now, s.schedule.Start(), s.schedule.End())
	}

	if err := s.verifier.Authorize(sig, recipient); err != nil {
		if errors.Is(err, whitelist.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	rate, ok := s.schedule.PriceAt(now)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoActiveTier, now)
	}

	raised, err := s.capped(&s.st.TotalRaised, value, s.cfg.Cap)
	if err != nil {
		return err
	}
	if value.IsZero() {
		return ErrZeroValue
	}

	tokens, err := s.credit(now, payer, recipient, value, rate)
	if err != nil {
		return err
	}
	s.st.TotalRaised = *raised
	s.metrics.purchases.WithLabelValues("public").Inc()
	s.metrics.raised.Set(toFloat(raised))
	s.logger.Info("purchase",
		zap.Stringer("payer", payer),
		zap.Stringer("recipient", recipient),
		zap.String("value", value.Dec()),
		zap.String("tokens", tokens.Dec()),
		zap.Uint64("rate", rate))
	return nil
}

// PartnerPurchase buys tokens for recipient at the first tier's rate. Only
// the partner may call it, strictly before the start and while not halted.
func (s *Sale) PartnerPurchase(caller, recipient account.Address, value *uint256.Int) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.partnerPurchaseLocked(now, caller, recipient, value)
	if err != nil {
		s.reject("partner_purchase", err, zap.Stringer("recipient", recipient))
	}
	return err
}

func (s *Sale) partnerPurchaseLocked(now int64, caller, recipient account.Address, value *uint256.Int) error {
	if value == nil {
		return ErrZeroValue
	}
	if s.cfg.Partner.IsZero() || caller != s.cfg.Partner {
		return fmt.Errorf("%w: %s", ErrNotPartner, caller)
	}
	if s.st.Halted {
		return ErrHalted
	}
	if now >= s.schedule.Start() {
		return fmt.Errorf("%w: now %d, start %d", ErrNotBeforeStart, now, s.schedule.Start())
	}

	partnerRaised, err := s.capped(&s.st.PartnerRaised, value, s.cfg.PartnerCap)
	if err != nil {
		return err
	}
	raised, err := s.capped(&s.st.TotalRaised, value, s.cfg.Cap)
	if err != nil {
		return err
	}
	if value.IsZero() {
		return ErrZeroValue
	}

	rate := s.schedule.FirstRate()
	tokens, err := s.credit(now, caller, recipient, value, rate)
	if err != nil {
		return err
	}
	s.st.PartnerRaised = *partnerRaised
	s.st.TotalRaised = *raised
	s.metrics.purchases.WithLabelValues("partner").Inc()
	s.metrics.raised.Set(toFloat(raised))
	s.logger.Info("partner purchase",
		zap.Stringer("recipient", recipient),
		zap.String("value", value.Dec()),
		zap.String("tokens", tokens.Dec()))
	return nil
}

// capped returns current+value, failing when it passes limit.
func (s *Sale) capped(current, value, limit *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(current, value)
	if overflow || sum.Gt(limit) {
		return nil, fmt.Errorf("%w: %s + %s > %s", ErrCapExceeded, current.Dec(), value.Dec(), limit.Dec())
	}
	return sum, nil
}

// credit mints the tokens and forwards value to the payee in one ledger
// transaction. The bank transfer runs last so a refused payment discards
// the staged mint.
func (s *Sale) credit(now int64, payer, recipient account.Address, value *uint256.Int, rate uint64) (*uint256.Int, error) {
	tokens, err := s.schedule.Convert(value, rate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapExceeded, err)
	}
	err = s.ledger.UpdateAt(now, func(tx *ledger.Tx) error {
		if err := tx.Mint(s.address, recipient, tokens, false); err != nil {
			return err
		}
		return s.bank.Transfer(payer, tx.Payee(), value)
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *Sale) reject(op string, err error, fields ...zap.Field) {
	s.metrics.rejections.WithLabelValues(reason(err)).Inc()
	s.logger.Debug(op+" rejected", append(fields, zap.Error(err))...)
}

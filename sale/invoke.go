package sale

import (
	"fmt"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/whitelist"
)

var _ host.Target = (*Sale)(nil)

// Methods reachable through Invoke.
var (
	SelHalt            = host.MethodSelector("halt()")
	SelUnhalt          = host.MethodSelector("unhalt()")
	SelChangePayee     = host.MethodSelector("changePayee(address)")
	SelPartnerPurchase = host.MethodSelector("partnerPurchase(address)")
	SelPurchase        = host.MethodSelector("purchase(address,uint8,bytes32,bytes32)")
)

// Invoke executes an encoded call. purchase and partnerPurchase are payable
// and spend call.Value from call.Caller.
func (s *Sale) Invoke(call *host.Call) error {
	sel, args, err := host.DecodeCall(call.Data)
	if err != nil {
		return err
	}

	switch sel {
	case SelHalt, SelUnhalt:
		if err := host.RequireNoValue(call); err != nil {
			return err
		}
		if err := host.ExpectArgs(args, 0); err != nil {
			return err
		}
		if sel == SelHalt {
			return s.Halt(call.Caller)
		}
		return s.Unhalt(call.Caller)

	case SelChangePayee:
		if err := host.RequireNoValue(call); err != nil {
			return err
		}
		if err := host.ExpectArgs(args, 1); err != nil {
			return err
		}
		next, err := args[0].Address()
		if err != nil {
			return err
		}
		return s.ChangePayee(call.Caller, next)

	case SelPartnerPurchase:
		if err := host.ExpectArgs(args, 1); err != nil {
			return err
		}
		recipient, err := args[0].Address()
		if err != nil {
			return err
		}
		return s.PartnerPurchase(call.Caller, recipient, &call.Value)

	case SelPurchase:
		if err := host.ExpectArgs(args, 4); err != nil {
			return err
		}
		recipient, err := args[0].Address()
		if err != nil {
			return err
		}
		v := args[1].Amount()
		if !v.IsUint64() || v.Uint64() > 0xff {
			return fmt.Errorf("%w: v out of range", host.ErrMalformedCall)
		}
		sig, err := whitelist.NewSignature(byte(v.Uint64()), args[2][:], args[3][:])
		if err != nil {
			return err
		}
		return s.Purchase(call.Caller, recipient, &call.Value, sig)
	}
	return fmt.Errorf("%w: %x", host.ErrUnknownMethod, sel[:])
}

// PurchaseCall encodes a purchase for recipient carrying sig.
func PurchaseCall(recipient account.Address, sig whitelist.Signature) []byte {
	var v host.Word
	v[host.WordSize-1] = sig.V
	return host.EncodeCall(SelPurchase, host.AddressWord(recipient), v, host.Word(sig.R), host.Word(sig.S))
}

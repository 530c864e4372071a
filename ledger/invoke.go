package ledger

import (
	"fmt"

	"github.com/bitfsorg/libsale-go/host"
)

var _ host.Target = (*Ledger)(nil)

// Methods reachable through Invoke.
var (
	SelChangePayee            = host.MethodSelector("changePayee(address)")
	SelChangeMintingAuthority = host.MethodSelector("changeMintingAuthority(address)")
	SelUnlock                 = host.MethodSelector("unlock(address)")
	SelTransfer               = host.MethodSelector("transfer(address,uint256)")
	SelApprove                = host.MethodSelector("approve(address,uint256)")
)

// Invoke executes an encoded call with call.Caller as the acting account.
// No ledger method is payable.
func (l *Ledger) Invoke(call *host.Call) error {
	if err := host.RequireNoValue(call); err != nil {
		return err
	}
	sel, args, err := host.DecodeCall(call.Data)
	if err != nil {
		return err
	}

	switch sel {
	case SelChangePayee, SelChangeMintingAuthority, SelUnlock:
		if err := host.ExpectArgs(args, 1); err != nil {
			return err
		}
		a, err := args[0].Address()
		if err != nil {
			return err
		}
		switch sel {
		case SelChangePayee:
			return l.ChangePayee(call.Caller, a)
		case SelChangeMintingAuthority:
			return l.ChangeMintingAuthority(call.Caller, a)
		default:
			return l.Unlock(call.Caller, a)
		}

	case SelTransfer, SelApprove:
		if err := host.ExpectArgs(args, 2); err != nil {
			return err
		}
		to, err := args[0].Address()
		if err != nil {
			return err
		}
		amount := args[1].Amount()
		if sel == SelTransfer {
			return l.Transfer(call.Caller, to, amount)
		}
		return l.Approve(call.Caller, to, amount)
	}
	return fmt.Errorf("%w: %x", host.ErrUnknownMethod, sel[:])
}

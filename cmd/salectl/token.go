package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/deploy"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/ledger"
)

// ledgerCall dispatches an encoded ledger method as caller.
func ledgerCall(d *deploy.Deployment, caller account.Address, sel host.Selector, args ...host.Word) error {
	return d.Router().Dispatch(&host.Call{
		Caller:      caller,
		Destination: deploy.LedgerAddress,
		Data:        host.EncodeCall(sel, args...),
	})
}

func transferCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Move tokens once transfers are enabled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress("to", args[0])
			if err != nil {
				return err
			}
			amt, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			sender, err := fromFlag(from, account.Zero)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				if err := ledgerCall(d, sender, ledger.SelTransfer, host.AddressWord(to), host.AmountWord(amt.Int())); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transferred %s from %s to %s\n", amt, sender, to)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "sending account")
	return cmd
}

func approveCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Set a spender's allowance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spender, err := parseAddress("spender", args[0])
			if err != nil {
				return err
			}
			amt, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			owner, err := fromFlag(from, account.Zero)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				if err := ledgerCall(d, owner, ledger.SelApprove, host.AddressWord(spender), host.AmountWord(amt.Int())); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "allowance %s -> %s: %s\n", owner, spender, amt)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "owning account")
	return cmd
}

func unlockCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "unlock <account>",
		Short: "Release an account's vested tokens after the thaw",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				caller, err := fromFlag(from, d.Ledger().Payee())
				if err != nil {
					return err
				}
				if err := ledgerCall(d, caller, ledger.SelUnlock, host.AddressWord(who)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s balance %s\n", who, d.Ledger().BalanceOf(who).Dec())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "acting account (default payee)")
	return cmd
}

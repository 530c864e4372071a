package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/deploy"
	"github.com/bitfsorg/libsale-go/multisig"
)

func walletCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Multi-owner wallet operations",
	}
	cmd.AddCommand(walletSubmitCommand(a))
	cmd.AddCommand(walletConfirmCommand(a))
	cmd.AddCommand(walletListCommand(a, false))
	cmd.AddCommand(walletListCommand(a, true))
	return cmd
}

func walletSubmitCommand(a *app) *cobra.Command {
	var (
		from  string
		nonce int64
	)
	cmd := &cobra.Command{
		Use:   "submit <destination> <value> [data]",
		Short: "Propose an operation and confirm it as the proposer",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := parseAddress("destination", args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount("value", args[1])
			if err != nil {
				return err
			}
			var payload []byte
			if len(args) == 3 {
				if payload, err = hex.DecodeString(strings.TrimPrefix(args[2], "0x")); err != nil {
					return fmt.Errorf("data: %w", err)
				}
			}
			owner, err := fromFlag(from, account.Zero)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				w, err := d.Wallet()
				if err != nil {
					return err
				}
				n := uint64(nonce)
				if nonce < 0 {
					if n, err = w.NextNonce(); err != nil {
						return err
					}
				}
				id, err := w.Submit(owner, dest, value.Int(), payload, n)
				if err != nil {
					return err
				}
				op, err := w.Operation(id)
				if err != nil {
					return err
				}
				printOperation(cmd.OutOrStdout(), op, w.Required())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "proposing owner")
	cmd.Flags().Int64Var(&nonce, "nonce", -1, "operation nonce (default next unused)")
	return cmd
}

func walletConfirmCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "confirm <operation-id>",
		Short: "Confirm a pending operation; it executes at the threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := multisig.ParseOperationID(args[0])
			if err != nil {
				return err
			}
			owner, err := fromFlag(from, account.Zero)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				w, err := d.Wallet()
				if err != nil {
					return err
				}
				if err := w.Confirm(owner, id); err != nil {
					return err
				}
				op, err := w.Operation(id)
				if err != nil {
					return err
				}
				printOperation(cmd.OutOrStdout(), op, w.Required())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "confirming owner")
	return cmd
}

func walletListCommand(a *app, executed bool) *cobra.Command {
	use, short := "pending", "List operations awaiting confirmations"
	if executed {
		use, short = "executed", "List executed operations"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(d *deploy.Deployment, now int64) error {
				w, err := d.Wallet()
				if err != nil {
					return err
				}
				ids := w.Pending()
				if executed {
					ids = w.Executed()
				}
				for _, id := range ids {
					op, err := w.Operation(id)
					if err != nil {
						return err
					}
					printOperation(cmd.OutOrStdout(), op, w.Required())
				}
				return nil
			})
		},
	}
}

func printOperation(out io.Writer, op multisig.Operation, required int) {
	state := "pending"
	if op.Executed {
		state = "executed"
	}
	fmt.Fprintf(out, "%s %s %d/%d to=%s value=%s nonce=%d\n",
		op.ID, state, len(op.Confirmations), required, op.Destination, op.Value.Dec(), op.Nonce)
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/deploy"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/sale"
	"github.com/bitfsorg/libsale-go/whitelist"
)

func initCommand(a *app) *cobra.Command {
	var template bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Deploy the sale described by the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if template {
				if !a.configMissing {
					return fmt.Errorf("%s already exists", a.configPath)
				}
				if err := config.SaveConfig(a.configPath, a.cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s; fill in signer, partner, payee and start\n", a.configPath)
				return nil
			}
			if err := a.requireConfig(); err != nil {
				return err
			}
			if err := os.MkdirAll(a.cfg.DataDir, 0700); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			d, err := deploy.Init(a.cfg, host.NewManualClock(a.now()), st, deploy.WithLogger(a.logger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sale      %s\n", deploy.SaleAddress)
			fmt.Fprintf(out, "ledger    %s\n", deploy.LedgerAddress)
			fmt.Fprintf(out, "payee     %s\n", d.Ledger().Payee())
			fmt.Fprintf(out, "supply    %s\n", d.Ledger().TotalSupply().Dec())
			if w, err := d.Wallet(); err == nil {
				fmt.Fprintf(out, "wallet    %s (%d of %d)\n", w.Address(), w.Required(), len(w.Owners()))
			}
			return a.writeMetrics(d)
		},
	}
	cmd.Flags().BoolVar(&template, "template", false, "write a default config file instead of deploying")
	return cmd
}

func statusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sale phase, totals and roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.view(func(d *deploy.Deployment, now int64) error {
				s, l := d.Sale(), d.Ledger()
				cfg := s.Config()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "phase           %s\n", s.Phase(now))
				fmt.Fprintf(out, "window          %d .. %d\n", s.Start(), s.End())
				if rate, ok := s.Schedule().PriceAt(now); ok {
					fmt.Fprintf(out, "rate            %d/%d\n", rate, s.Schedule().Divisor())
				}
				fmt.Fprintf(out, "raised          %s / %s\n", s.TotalRaised().Dec(), cfg.Cap.Dec())
				fmt.Fprintf(out, "partner raised  %s / %s\n", s.PartnerRaised().Dec(), cfg.PartnerCap.Dec())
				fmt.Fprintf(out, "supply          %s / %s\n", l.TotalSupply().Dec(), l.MaxSupply().Dec())
				fmt.Fprintf(out, "payee           %s\n", l.Payee())
				fmt.Fprintf(out, "minter          %s\n", l.MintingAuthority())
				fmt.Fprintf(out, "transferable at %d\n", l.TransferableAt())
				fmt.Fprintf(out, "unlock at       %d\n", l.UnlockTime())
				if w, err := d.Wallet(); err == nil {
					fmt.Fprintf(out, "wallet          %s (%d of %d, %d pending)\n",
						w.Address(), w.Required(), len(w.Owners()), len(w.Pending()))
				}
				return nil
			})
		},
	}
}

func balanceCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show token, locked and native balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			return a.view(func(d *deploy.Deployment, now int64) error {
				out := cmd.OutOrStdout()
				if p2pkh, err := who.P2PKH(a.cfg.Network == "mainnet"); err == nil {
					fmt.Fprintf(out, "address  %s\n", p2pkh)
				}
				fmt.Fprintf(out, "tokens   %s\n", d.Ledger().BalanceOf(who).Dec())
				fmt.Fprintf(out, "locked   %s\n", d.Ledger().LockedBalanceOf(who).Dec())
				fmt.Fprintf(out, "native   %s\n", d.Bank().BalanceOf(who).Dec())
				return nil
			})
		},
	}
}

func depositCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Credit native value to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress("account", args[0])
			if err != nil {
				return err
			}
			amt, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				if err := d.Bank().Deposit(to, amt.Int()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deposited %s to %s\n", amt, to)
				return nil
			})
		},
	}
}

func purchaseCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "purchase <recipient> <value> <signature>",
		Short: "Buy tokens for a whitelisted recipient",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseAddress("recipient", args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount("value", args[1])
			if err != nil {
				return err
			}
			sig, err := whitelist.ParseSignatureHex(args[2])
			if err != nil {
				return err
			}
			payer, err := fromFlag(from, recipient)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				before := d.Ledger().BalanceOf(recipient)
				err := d.Router().Dispatch(&host.Call{
					Caller:      payer,
					Destination: deploy.SaleAddress,
					Value:       *value.Int(),
					Data:        sale.PurchaseCall(recipient, sig),
				})
				if err != nil {
					return err
				}
				minted := d.Ledger().BalanceOf(recipient)
				minted.Sub(minted, before)
				fmt.Fprintf(cmd.OutOrStdout(), "minted %s to %s\n", minted.Dec(), recipient)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "paying account (default recipient)")
	return cmd
}

func partnerPurchaseCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "partner-purchase <recipient> <value>",
		Short: "Pre-sale purchase by the partner at the first-tier rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseAddress("recipient", args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount("value", args[1])
			if err != nil {
				return err
			}
			caller, err := fromFlag(from, a.cfg.Sale.Partner)
			if err != nil {
				return err
			}
			return a.run(func(d *deploy.Deployment, now int64) error {
				err := d.Router().Dispatch(&host.Call{
					Caller:      caller,
					Destination: deploy.SaleAddress,
					Value:       *value.Int(),
					Data:        host.EncodeCall(sale.SelPartnerPurchase, host.AddressWord(recipient)),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "partner raised %s\n", d.Sale().PartnerRaised().Dec())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "partner account (default from config)")
	return cmd
}

func haltCommand(a *app, halt bool) *cobra.Command {
	use, sel := "unhalt", sale.SelUnhalt
	if halt {
		use, sel = "halt", sale.SelHalt
	}
	var from string
	cmd := &cobra.Command{
		Use:   use,
		Short: "Pause or resume purchases (payee only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(d *deploy.Deployment, now int64) error {
				caller, err := fromFlag(from, d.Ledger().Payee())
				if err != nil {
					return err
				}
				if _, werr := d.Wallet(); werr == nil && caller == deploy.WalletAddress {
					return errors.New("the payee is the wallet: use wallet submit")
				}
				err = d.Router().Dispatch(&host.Call{
					Caller:      caller,
					Destination: deploy.SaleAddress,
					Data:        host.EncodeCall(sel),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "halted=%t\n", d.Sale().Halted())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "acting account (default payee)")
	return cmd
}

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/libsale-go/account"
	"github.com/bitfsorg/libsale-go/config"
	"github.com/bitfsorg/libsale-go/host"
	"github.com/bitfsorg/libsale-go/keys"
	"github.com/bitfsorg/libsale-go/whitelist"
)

const passwordEnv = "SALE_KEY_PASSWORD"

func keyPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v, ok := os.LookupEnv(passwordEnv); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("--password or %s is required", passwordEnv)
}

func keygenCommand(a *app) *cobra.Command {
	var (
		words    int
		mnemonic string
		password string
		index    uint32
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create or import the whitelist signer seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := keyPassword(password)
			if err != nil {
				return err
			}
			path := config.KeyPath(a.cfg.DataDir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists (use --force to replace it)", path)
			}

			generated := mnemonic == ""
			if generated {
				bits := keys.Mnemonic12Words
				if words == 24 {
					bits = keys.Mnemonic24Words
				} else if words != 12 {
					return errors.New("--words must be 12 or 24")
				}
				if mnemonic, err = keys.GenerateMnemonic(bits); err != nil {
					return err
				}
			}
			seed, err := keys.SeedFromMnemonic(strings.TrimSpace(mnemonic), "")
			if err != nil {
				return err
			}
			ring, err := keys.NewKeyring(seed, a.cfg.Network == "testnet")
			if err != nil {
				return err
			}
			signer, err := ring.Signer(index)
			if err != nil {
				return err
			}
			if err := keys.WriteSeedFile(path, seed, pw); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if generated {
				fmt.Fprintf(out, "mnemonic  %s\n", mnemonic)
			}
			fmt.Fprintf(out, "signer    %s\n", signer.Account)
			fmt.Fprintf(out, "path      %s\n", signer.Path)
			fmt.Fprintf(out, "key file  %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&words, "words", 12, "mnemonic length (12 or 24)")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "import this mnemonic instead of generating one")
	cmd.Flags().StringVar(&password, "password", "", "key file password (default $"+passwordEnv+")")
	cmd.Flags().Uint32Var(&index, "index", 0, "signer index to display")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing key file")
	return cmd
}

func signCommand(a *app) *cobra.Command {
	var (
		password string
		index    uint32
	)
	cmd := &cobra.Command{
		Use:   "sign <recipient>",
		Short: "Authorise a recipient for purchases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := parseAddress("recipient", args[0])
			if err != nil {
				return err
			}
			pw, err := keyPassword(password)
			if err != nil {
				return err
			}
			seed, err := keys.ReadSeedFile(config.KeyPath(a.cfg.DataDir), pw)
			if err != nil {
				return err
			}
			ring, err := keys.NewKeyring(seed, a.cfg.Network == "testnet")
			if err != nil {
				return err
			}
			signer, err := ring.Signer(index)
			if err != nil {
				return err
			}
			if !a.configMissing && signer.Account != a.cfg.Sale.Signer {
				a.logger.Warn("signing key is not the configured signer")
			}
			sig, err := whitelist.Sign(signer.PrivateKey, recipient)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "key file password (default $"+passwordEnv+")")
	cmd.Flags().Uint32Var(&index, "index", 0, "signer index")
	return cmd
}

// encodeCommand prints call data for wallet submit. Arguments of 40 hex
// digits are addresses; anything else is an amount.
func encodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <method> [arg...]",
		Short: `Encode call data, e.g. encode "transfer(address,uint256)" 0x.. 5e18`,
		Args:  cobra.MinimumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			method := args[0]
			if !strings.Contains(method, "(") {
				return errors.New("method must be a full signature such as halt()")
			}
			words := make([]host.Word, 0, len(args)-1)
			for i, arg := range args[1:] {
				if trimmed := strings.TrimPrefix(arg, "0x"); len(trimmed) == 2*account.Size {
					addr, err := parseAddress(fmt.Sprintf("arg %d", i+1), arg)
					if err != nil {
						return err
					}
					words = append(words, host.AddressWord(addr))
					continue
				}
				amt, err := parseAmount(fmt.Sprintf("arg %d", i+1), arg)
				if err != nil {
					return err
				}
				words = append(words, host.AmountWord(amt.Int()))
			}
			data := host.EncodeCall(host.MethodSelector(method), words...)
			fmt.Fprintln(cmd.OutOrStdout(), "0x"+hex.EncodeToString(data))
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"strconv"

	"driftexport/pkg/drift"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func newDeriveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive Drift account addresses",
	}
	cmd.AddCommand(newDeriveUsersCmd(a), newDeriveStatsCmd(a), newDeriveAuthorityCmd(a))
	return cmd
}

func parseKey(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, usageErrorf("invalid public key %q: %v", s, err)
	}
	return key, nil
}

func (a *app) programID() (solana.PublicKey, error) {
	return drift.ParseProgramID(a.cfg.Drift.ProgramID)
}

func newDeriveUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users <authority> <count>",
		Short: "Print the first <count> sub-account addresses of an authority",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, err := parseKey(args[0])
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(args[1])
			if err != nil || count < 1 || count > drift.MaxSubAccounts {
				return usageErrorf("count must be between 1 and %d, got %q", drift.MaxSubAccounts, args[1])
			}
			programID, err := a.programID()
			if err != nil {
				return err
			}

			addrs, err := drift.DeriveUserAddresses(programID, authority, count)
			if err != nil {
				return err
			}
			for i, addr := range addrs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i, addr)
			}
			return nil
		},
	}
}

func newDeriveStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <authority>",
		Short: "Print the UserStats address of an authority",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			authority, err := parseKey(args[0])
			if err != nil {
				return err
			}
			programID, err := a.programID()
			if err != nil {
				return err
			}

			addr, err := drift.UserStatsAddress(programID, authority)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}
}

func newDeriveAuthorityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authority <user-account>",
		Short: "Fetch a User account and print its authority",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseKey(args[0])
			if err != nil {
				return err
			}

			client, err := a.dial(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			acc, _, err := client.GetAccount(cmd.Context(), address)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", address, err)
			}
			user, err := drift.DecodeUser(address.String(), acc.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tsub_account=%d\n", user.Authority, user.SubAccountID)
			return nil
		},
	}
}

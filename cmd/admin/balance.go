package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Inspect or correct token balances",
}

var balanceShowCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Print a user's balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initDB(); err != nil {
			return err
		}
		user, err := resolveUser(cmd, args[0])
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := svc.Ledger.History(cmd.Context(), user.ID, limit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s): %d tokens\n\n", user.DisplayName, user.ID, user.Balance)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tDELTA\tAFTER\tREASON")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%+d\t%d\t%s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Delta, e.BalanceAfter, e.Reason)
		}
		return w.Flush()
	},
}

var balanceAdjustCmd = &cobra.Command{
	Use:   "adjust <user> <delta>",
	Short: "Credit or debit a user through the ledger",
	Long: `Apply a signed token delta to a user. The change is written to the
ledger as a manual adjustment and refused if it would make the balance negative.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initDB(); err != nil {
			return err
		}
		user, err := resolveUser(cmd, args[0])
		if err != nil {
			return err
		}
		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("delta must be an integer: %w", err)
		}
		if delta > domain.MaxAdjustment || delta < -domain.MaxAdjustment {
			return fmt.Errorf("delta %d is outside ±%d: %w", delta, domain.MaxAdjustment, domain.ErrInvalidAmount)
		}

		note, _ := cmd.Flags().GetString("note")
		input := service.AdjustInput{
			UserID: user.ID,
			Delta:  delta,
			Reason: domain.ReasonManualAdjustment,
		}
		if note != "" {
			input.Metadata = map[string]any{"note": note}
		}

		entry, err := svc.Ledger.Adjust(cmd.Context(), input)
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return fmt.Errorf("%s has %d tokens, cannot apply %+d", user.DisplayName, user.Balance, delta)
		}
		if err != nil {
			return fmt.Errorf("adjust balance: %w", err)
		}
		if entry == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %+d -> %d tokens\n", user.DisplayName, entry.Delta, entry.BalanceAfter)
		return nil
	},
}

// resolveUser accepts a user id or a display name.
func resolveUser(cmd *cobra.Command, ref string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		user, err = repos.User.GetByID(cmd.Context(), id)
	} else {
		user, err = repos.User.GetByDisplayName(cmd.Context(), ref)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", ref, err)
	}
	return user, nil
}

func init() {
	balanceShowCmd.Flags().IntP("limit", "n", 20, "Number of ledger entries to show")
	balanceAdjustCmd.Flags().String("note", "", "Free text stored with the ledger entry")

	balanceCmd.AddCommand(balanceShowCmd)
	balanceCmd.AddCommand(balanceAdjustCmd)
}

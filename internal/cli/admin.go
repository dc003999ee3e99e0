package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/timebank-network/timebank/internal/daemon"
	"github.com/timebank-network/timebank/internal/infra/sqlite"
)

// ─── Admin Commands ─────────────────────────────────────────────────────────
// Provisioning commands operate on the sqlite store directly; grants are
// not reachable through the task API by design.

func init() {
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(balanceCmd)
}

var grantCmd = &cobra.Command{
	Use:   "grant USER_ID [AMOUNT]",
	Short: "Grant time credits to an account",
	Long: `Credit an account at provisioning time, creating it if missing.
With no amount, the configured signup grant is applied.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGrant,
}

func runGrant(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	amount := cfg.Ledger.SignupGrant
	if len(args) == 2 {
		amount, err = strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Grant(args[0], amount); err != nil {
		return err
	}
	balance, err := db.Balance(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "granted %d credits to %s (balance: %d)\n", amount, args[0], balance)
	return nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance USER_ID",
	Short: "Show an account's time-credit balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	balance, err := db.Balance(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s: %d credits\n", args[0], balance)
	return nil
}

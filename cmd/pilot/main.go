package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/config"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/logging"
	"github.com/SkyBlue997/MicrosoftRewardsPilot/internal/store"
)

var (
	configPath string
	verbose    bool
	daemon     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Quota-driven rewards search pilot",
	Long: `pilot drives Bing search campaigns per account and device class until
the daily point quota is satisfied or the campaign gives up gracefully.

Campaigns pace themselves adaptively, detect stalls, escalate through
recovery tactics and always terminate within a wall-clock budget with a
partial result rather than failing hard.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.Init(level, cfg.Logging.JSON)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run campaigns for all configured accounts",
	Long: `Runs the desktop and mobile campaigns for every configured account.

Accounts run with bounded parallelism (max_parallel_accounts, default 1 =
fully sequential). With --daemon the full pass repeats on the configured
interval, reloading the config file between passes when it changes.`,
	RunE: runCampaigns,
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show recent campaign results from the ledger",
	RunE:  showResults,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pilot.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	runCmd.Flags().BoolVar(&daemon, "daemon", false, "re-run on the configured interval")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resultsCmd)
}

func showResults(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ledger, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	results, err := ledger.RecentResults(30)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no recorded campaigns yet")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s  %-28s %-8s %-20s earned=%-4d remaining=%-4d attempts=%d\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			r.Account, r.Device, r.Status, r.EarnedPoints, r.DeficitRemaining, r.Attempts)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

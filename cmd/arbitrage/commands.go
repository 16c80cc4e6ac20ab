package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/internal/config"
)

var (
	cfgFile  string
	logLevel string
	tuiMode  bool
)

var rootCmd = &cobra.Command{
	Use:           "arbitrage",
	Short:         "Find and execute cross-venue Solana DEX arbitrage",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the opportunity pipeline until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.App.TUI = tuiMode
		return run(cmd.Context(), cfg)
	},
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "Print the registered account layouts",
	Run: func(cmd *cobra.Command, args []string) {
		printLayouts(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dex-arbitrage %s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	runCmd.Flags().BoolVar(&tuiMode, "tui", false, "Show the live dashboard instead of console output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(layoutsCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	return cfg, nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	venues := make([]string, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		venues = append(venues, fmt.Sprintf("%s=%sbps", v.Name, v.FeeBps))
	}
	scorer := "heuristic"
	if cfg.Scorer.URL != "" {
		scorer = cfg.Scorer.URL
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SETTING", "VALUE").
		Row("mode", cfg.Trading.Mode).
		Row("live execution", fmt.Sprint(cfg.Trading.LiveExecution())).
		Row("max trade", cfg.Trading.MaxTradeAmountSOL.String()+" SOL").
		Row("max concurrent trades", fmt.Sprint(cfg.Trading.MaxConcurrentTrades)).
		Row("max exposure", cfg.Trading.MaxExposureSOL().String()+" SOL").
		Row("min net profit", cfg.Filter.MinNetProfitBps.String()+" bps").
		Row("max slippage", cfg.Risk.MaxSlippageBps().String()+" bps").
		Row("cycle deadline", cfg.Pipeline.CycleDeadline().String()).
		Row("targets", fmt.Sprint(len(cfg.Targets))).
		Row("venues", strings.Join(venues, " ")).
		Row("scorer", scorer).
		Row("audit store", fmt.Sprint(cfg.Store.DSN != ""))
	fmt.Fprintln(w, t)
}

func printLayouts(w io.Writer) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("LAYOUT", "FIELD", "OFFSET", "BYTES")

	for _, l := range domain.Layouts() {
		t.Row(l.Key.String(), "", "", fmt.Sprintf("min %d", l.Size))
		for _, name := range l.FieldNames() {
			f, _ := l.Field(name)
			t.Row("", name, fmt.Sprint(f.Offset), fmt.Sprint(f.Kind.Size()))
		}
	}
	fmt.Fprintln(w, t)
}

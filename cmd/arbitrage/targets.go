package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fd1az/dex-arbitrage/business/pool"
	"github.com/fd1az/dex-arbitrage/business/pool/domain"
	"github.com/fd1az/dex-arbitrage/business/pool/infra/sqlite"
)

var newTarget struct {
	id, venue, pair, source     string
	protocol, version, account  string
	vaultA, vaultB              string
	baseDecimals, quoteDecimals uint8
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Inspect and edit the venue targets",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the merged targets from config and the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		targets, err := pool.LoadConfiguredTargets(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		printTargets(cmd.OutOrStdout(), targets)
		return nil
	},
}

var targetsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert or replace a target in the sqlite registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := domain.Target{
			ID:            newTarget.id,
			Venue:         newTarget.venue,
			Pair:          newTarget.pair,
			Source:        domain.Source(newTarget.source),
			Protocol:      domain.Protocol(newTarget.protocol),
			Version:       newTarget.version,
			Account:       newTarget.account,
			VaultA:        newTarget.vaultA,
			VaultB:        newTarget.vaultB,
			BaseDecimals:  newTarget.baseDecimals,
			QuoteDecimals: newTarget.quoteDecimals,
		}
		if err := t.Validate(); err != nil {
			return err
		}
		return withRegistry(cmd.Context(), func(reg *sqlite.Registry) error {
			if err := reg.Upsert(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "target %s saved\n", t.ID)
			return nil
		})
	},
}

var targetsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Stop polling a registry target without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(reg *sqlite.Registry) error {
			if err := reg.Disable(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "target %s disabled\n", args[0])
			return nil
		})
	},
}

func init() {
	f := targetsAddCmd.Flags()
	f.StringVar(&newTarget.id, "id", "", "Target id")
	f.StringVar(&newTarget.venue, "venue", "", "Venue name from the fee table")
	f.StringVar(&newTarget.pair, "pair", "", "Pair as BASE/QUOTE")
	f.StringVar(&newTarget.source, "source", string(domain.SourceAccount), "account or quote")
	f.StringVar(&newTarget.protocol, "protocol", "", "Account layout protocol")
	f.StringVar(&newTarget.version, "version", "", "Account layout version")
	f.StringVar(&newTarget.account, "account", "", "Pool account address")
	f.StringVar(&newTarget.vaultA, "vault-a", "", "Base vault address")
	f.StringVar(&newTarget.vaultB, "vault-b", "", "Quote vault address")
	f.Uint8Var(&newTarget.baseDecimals, "base-decimals", 0, "Base mint decimals for unregistered assets")
	f.Uint8Var(&newTarget.quoteDecimals, "quote-decimals", 0, "Quote mint decimals for unregistered assets")
	_ = targetsAddCmd.MarkFlagRequired("id")
	_ = targetsAddCmd.MarkFlagRequired("venue")
	_ = targetsAddCmd.MarkFlagRequired("pair")

	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsDisableCmd)
}

func withRegistry(ctx context.Context, fn func(*sqlite.Registry) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Registry.SQLitePath == "" {
		return fmt.Errorf("registry.sqlite_path is not configured")
	}
	reg, err := sqlite.Open(ctx, cfg.Registry.SQLitePath)
	if err != nil {
		return err
	}
	defer reg.Close()
	return fn(reg)
}

func printTargets(w io.Writer, targets []domain.Target) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "VENUE", "PAIR", "SOURCE", "LAYOUT", "ACCOUNT")
	for _, tg := range targets {
		layout := ""
		if tg.Source == domain.SourceAccount {
			layout = tg.LayoutKey().String()
		}
		t.Row(tg.ID, tg.Venue, tg.Pair, string(tg.Source), layout, tg.Account)
	}
	fmt.Fprintln(w, t)
}

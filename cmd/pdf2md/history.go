// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/ledger"
	"github.com/pdiddy/pdf2md/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previously processed PDFs",
	Long: `History lists the documents recorded by earlier runs, newest first, with
their status, page counts and duration.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("status", "", "only show this status: converted, partial, failed or cancelled")
	historyCmd.Flags().Int("limit", ledger.DefaultLimit, "maximum number of rows")
	historyCmd.Flags().Bool("json", false, "print JSON instead of a table")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := viper.GetString("ledger_path")
	if path == "" {
		return fmt.Errorf("history is disabled: ledger_path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet.")
		return nil
	}

	store, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	recs, err := store.List(cmd.Context(), ledger.Filter{Status: types.DocumentStatus(status), Limit: limit})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching documents.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), ledger.RenderTable(recs))
	return nil
}

package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "List the live cost jobs of a tenant",
	Long: `Lists running jobs and jobs completed within the grace window.
Requires REDIS_ADDR so that jobs started by the API are visible.`,
	RunE: runProgress,
}

func runProgress(cmd *cobra.Command, _ []string) error {
	cfg, tenant, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return errors.New("progress is kept in API memory; set REDIS_ADDR to share it")
	}

	entries, err := openStore(cfg).ListByTenant(cmd.Context(), tenant)
	if err != nil {
		return fmt.Errorf("failed to list progress: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tREFERENCE\tSTATUS\tPROCESSED\tFAILED\tTOTAL\tPERCENT")
	for _, p := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n", p.Kind, p.ReferenceID, p.Status, p.Processed, p.Failed, p.Total, p.Percentage)
	}
	return w.Flush()
}

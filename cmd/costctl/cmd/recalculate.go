package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Recalculate the costs of every order of a tenant",
	Long: `Re-evaluates every order of the tenant against its current fee rules and
persists the new breakdowns. Orders that fail are logged and counted; the job
continues with the next order.`,
	RunE: runRecalculate,
}

func runRecalculate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	updated, err := a.costs.RecalculateTenant(cmd.Context(), a.tenant, uuid.NewString())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recalculated %d orders\n", updated)
	return nil
}

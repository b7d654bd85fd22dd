package cmd

import (
	"fmt"

	"orderfinance/internal/service"

	"github.com/spf13/cobra"
)

var (
	relinkMethod string
	relinkRule   string
)

var relinkCmd = &cobra.Command{
	Use:   "relink",
	Short: "Link a payment method to a fee rule on every order that uses it",
	Long: `Sets the fee rule of the given canonical payment method (PIX, CREDIT_CARD, ...)
on every order of the tenant that was paid with it, then recalculates those orders.`,
	RunE: runRelink,
}

func init() {
	relinkCmd.Flags().StringVarP(&relinkMethod, "method", "m", "", "canonical payment method [REQUIRED]")
	relinkCmd.Flags().StringVarP(&relinkRule, "rule", "r", "", "payment_method fee rule id [REQUIRED]")
	_ = relinkCmd.MarkFlagRequired("method")
	_ = relinkCmd.MarkFlagRequired("rule")
}

func runRelink(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	count, err := a.links.BulkRelink(cmd.Context(), a.tenant, service.BulkRelinkRequest{
		Method:    relinkMethod,
		FeeRuleID: relinkRule,
	}, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "relinked %d orders\n", count)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [reference]",
		Short: "Check the status of a payment once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := flags.client().Check(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
			return nil
		},
	}
}

func plansCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := flags.client().Plans(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range plans {
				marker := ""
				if p.Popular {
					marker = " (most popular)"
				}
				fmt.Fprintf(out, "%-8s %s %s/month%s\n", p.Code, p.Amount.StringFixed(0), p.Currency, marker)
				for _, f := range p.Features {
					fmt.Fprintf(out, "         - %s\n", f)
				}
			}
			return nil
		},
	}
}

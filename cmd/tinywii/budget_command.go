package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tinywii/internal/budget"
)

func newBudgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show the worker pool sizes for this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cpus := budget.Detect(cmd.Context())
			b, err := budget.FromConfig(cfg.Pipeline, cpus)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logical CPUs: %d\n", cpus)
			fmt.Fprintf(out, "Preloaders:   %d\n", b.Preloader)
			fmt.Fprintf(out, "Processors:   %d\n", b.Processor)
			fmt.Fprintf(out, "Overridden:   %s\n", yesNo(cfg.Pipeline.PreloaderThreads > 0 || cfg.Pipeline.ProcessorThreads > 0))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hisserdb/hisser/pkg/agg"
)

// newAggMethodCmd mirrors cmd_agg_method: show which aggregation method a
// metric name resolves to under the configured rule set.
func newAggMethodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agg-method <metric.name>",
		Short: "show aggregation method for metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rules, err := aggRules(cfg)
			if err != nil {
				return err
			}
			method := rules.MethodFor(args[0])
			for name, m := range agg.Registry {
				if methodEquals(m, method) {
					fmt.Println(name)
					return nil
				}
			}
			return fmt.Errorf("agg-method: resolved method has no registry name")
		},
	}
}

// methodEquals compares two Methods by the result they produce on a fixed
// probe window. Method values can't be compared directly (function
// identity isn't preserved through Rules' storage), so this checks
// behavioral equality instead: {1, 5, 2} gives avg=8/3, sum=8, min=1,
// max=5, last=2 — five distinct results, one per registered method.
func methodEquals(a, b agg.Method) bool {
	probe := []float64{1, 5, 2}
	return a(probe) == b(probe)
}

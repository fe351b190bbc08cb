package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/rewrite/rewrite"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, reg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		listRules(cmd.OutOrStdout(), reg)
		return nil
	},
}

func listRules(out io.Writer, reg *rewrite.Registry) {
	for _, r := range reg.Rules() {
		fmt.Fprintf(out, "%s\n", r.Name)
		if r.Description != "" {
			fmt.Fprintf(out, "    %s\n", r.Description)
		}
		var guards []string
		for _, g := range r.Guards {
			guards = append(guards, g.String())
		}
		if len(guards) > 0 {
			fmt.Fprintf(out, "    guards: %s\n", strings.Join(guards, ", "))
		}
		if len(r.Includes) > 0 {
			fmt.Fprintf(out, "    includes: %s\n", strings.Join(r.Includes, ", "))
		}
	}
}

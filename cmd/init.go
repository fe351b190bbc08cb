package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnoswap-labs/rewrite/rewrite"
)

var force bool

// initCmd: rewrite init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = rewrite.DefaultConfigFile
		}
		if err := initConfigurationFile(path, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
}

func initConfigurationFile(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}
	return rewrite.WriteConfig(path, rewrite.DefaultConfig())
}

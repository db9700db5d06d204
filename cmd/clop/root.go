package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootFlags holds the persistent flags every subcommand reads through
// viper, bound here so env vars (CLOP_CONFIG_DIR, CLOP_JSON) override
// flag defaults the way sniplette's root command binds its own flags.
type rootFlags struct {
	configDir string
	jsonOut   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "clop",
		Short:        "Background media optimisation engine",
		Long:         fmt.Sprintf("clop %s (commit %s, built %s)", version, commit, buildDate),
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "settings document directory (default: OS user config dir)")
	cmd.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "emit machine-readable JSON instead of human-readable text")

	viper.SetEnvPrefix("clop")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config-dir", cmd.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("json", cmd.PersistentFlags().Lookup("json"))

	cmd.AddCommand(newOptimiseCmd(flags))
	cmd.AddCommand(newWatchCmd(flags))

	return cmd
}

func resolvedConfigDir(flags *rootFlags) string {
	if flags.configDir != "" {
		return flags.configDir
	}
	return viper.GetString("config-dir")
}

func resolvedJSON(flags *rootFlags) bool {
	if flags.jsonOut {
		return true
	}
	return viper.GetBool("json")
}

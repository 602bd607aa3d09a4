// Package cmd implements the taskflow command line.
package cmd

import (
	"github.com/phrazzld/taskflow/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the taskflow command tree. Flags are bound to keys on v,
// so they layer over the environment and the config file.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskflow",
		Short: "Concurrent producer/consumer task pipeline",
		Long: `Taskflow runs producer workers that generate arithmetic tasks onto a
bounded queue and consumer workers that fold them into a shared accumulator,
on either dedicated OS threads or lightweight tasks.`,
		SilenceUsage: true,
	}

	// Global flags
	root.PersistentFlags().StringP(config.ConfigFileKey, "c", "", "config file (default is ./taskflow.yaml)")
	_ = v.BindPFlag(config.ConfigFileKey, root.PersistentFlags().Lookup(config.ConfigFileKey))

	root.AddCommand(newRunCmd(v))
	root.AddCommand(newConfigCmd(v))

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd(viper.New()).Execute()
}

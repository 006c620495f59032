package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlitoy/sqlitoy/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "sqlitoy",
	Short: "A small relational database engine with a SQL subset over HTTP",
	Long: `sqlitoy is a single-process relational database engine: an in-memory
catalog and row store, B-tree secondary indexes, and snapshot persistence,
exposed over HTTP through a single /query endpoint.

Examples:
  sqlitoy serve              # run the query server in the foreground
  sqlitoy daemon start -b    # run it in the background
  sqlitoy daemon status
  sqlitoy load fixture.toml  # replay a TOML fixture as DDL/DML`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(func() {
		logging.Init(logging.Config{Level: logLevel, Format: "console", Output: "stderr"})
	})
}

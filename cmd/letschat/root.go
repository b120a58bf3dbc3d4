package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	appEnv  string
	rootCmd = &cobra.Command{
		Use:   "letschat",
		Short: "Chat gateway and queue listener",
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appEnv, "env", "", "config environment (development, docker, production); defaults to APP_ENV")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if appEnv != "" {
			_ = os.Setenv("APP_ENV", appEnv)
		}
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listenCmd)
}

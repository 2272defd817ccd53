// Package main is the portal binary: the web front-end plus CLI commands that
// drive the same session.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "portal"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Teacher portal for the classroom API",
		Long: `Portal is a local teacher portal for the classroom API.

It provides:
- A web front-end with guarded dashboard and class views (serve)
- CLI sign-in, registration and sign-out sharing the same credential file
- An in-process development API (fakeapi)`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML), defaults to $CONFIG_FILE")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides LOG_LEVEL")

	cmd.AddCommand(
		serveCmd(flags),
		loginCmd(flags),
		registerCmd(flags),
		whoamiCmd(flags),
		logoutCmd(flags),
		fakeAPICmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Printf("%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}

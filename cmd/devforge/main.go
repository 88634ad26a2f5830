// Command devforge runs the DevForge workflow server.
//
// Usage:
//
//	# Serve MCP over stdio (for Claude Code and other MCP clients)
//	devforge serve
//
//	# Serve the HTTP API
//	devforge http
//
//	# Inspect a project on disk without a running server
//	devforge status my-app
//	devforge resume my-app
//
// Configuration is read from ~/.config/devforge/config.yaml (or --config)
// and DEVFORGE_* environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// options holds flags shared by all subcommands.
type options struct {
	configPath string
	outputDir  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "devforge",
		Short: "Multi-phase project workflow server",
		Long: `devforge guides a project from requirements to tests: decision matrix,
spec-kit, API tests, frontend prompt, BDD tests and implementation with
automatic checkpoints.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/devforge/config.yaml)")
	root.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "", "project output directory (overrides storage.output_dir)")

	root.AddCommand(
		newServeCmd(opts),
		newHTTPCmd(opts),
		newStatusCmd(opts),
		newResumeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "devforge by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

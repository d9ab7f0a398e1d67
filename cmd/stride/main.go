// Stride: plan coordination and agent memory MCP server.
//
// Stride gives coding agents ordered, resumable plans with an atomic
// claim protocol (at most one in-progress step per plan) plus
// persistent notes, decisions, and saved contexts, all backed by a
// single SQLite database.
//
// Usage:
//
//	stride serve     # Start MCP server (stdio transport)
//	stride version   # Print version
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/stridemcp/stride/internal/config"
	strideserver "github.com/stridemcp/stride/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stride",
		Short: "Plan coordination and agent memory MCP server",
		Long: `Stride is an MCP server that coordinates agent work through plans:
ordered, resumable step lists with an atomic claim protocol, plus
persistent notes, decisions, and saved contexts.

Connect it to any MCP host over stdio with 'stride serve'.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.Path(),
		"Config file path (YAML)")

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stride v%s\n", strideserver.Version)
		},
	})

	return cmd
}

func serve(configPath string) error {
	// Stdout belongs to the MCP stdio transport; all logging goes to
	// stderr.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	s, cleanup, err := strideserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Printf("stride v%s serving on stdio (data dir: %s)", strideserver.Version, cfg.DataDir)
	return server.ServeStdio(s)
}

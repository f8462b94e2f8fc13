package main

import (
	"os"

	"github.com/spf13/cobra"

	"interlace/internal/lsp"
)

var rootCmd = &cobra.Command{
	Use:   "interlace",
	Short: "Language server for documents with embedded languages",
	Long: `Interlace serves completions, diagnostics, and navigation for markup
documents with embedded script, style, and template regions.`,
}

func main() {
	rootCmd.Version = lsp.Version
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

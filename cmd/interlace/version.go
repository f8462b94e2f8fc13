package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interlace/internal/lsp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", lsp.ServerName, lsp.Version)
	},
}

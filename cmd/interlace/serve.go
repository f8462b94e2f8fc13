package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"interlace/internal/lsp"
)

var (
	serveLogFile     string
	serveLibraryRoot string
	serveVerbose     int
)

func init() {
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "append logs to this file instead of stderr")
	serveCmd.Flags().StringVar(&serveLibraryRoot, "library-root", ".", "directory holding the static script libraries")
	serveCmd.Flags().CountVarP(&serveVerbose, "verbose", "v", "increase log verbosity")
}

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the language server over stdio",
	SilenceUsage: true,
	RunE:         runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// The protocol owns stdout, so logs go to stderr and optionally a
	// file.
	if serveLogFile != "" {
		logFile, err := os.OpenFile(serveLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		defer logFile.Close()
		commonlog.Configure(serveVerbose, &serveLogFile)
		log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	} else {
		commonlog.Configure(serveVerbose, nil)
		log.SetOutput(os.Stderr)
	}
	log.Printf("starting %s %s", lsp.ServerName, lsp.Version)

	server, err := lsp.NewServer(serveLibraryRoot)
	if err != nil {
		return err
	}
	return server.RunStdio()
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/nodeattach/pkg/logger"
)

var rootCmdLogger *logger.Logger

func NewRootCmd() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "nodeattach",
		Short: "Attaches a debugger to Node.js applications running on remote web sites",
		Long: `nodeattach discovers the debugger WebSocket proxy of a Node.js application
hosted on a remote web site and attaches a debugger to it.

It fetches the site's publish settings, downloads the site configuration over
FTP, locates the debugger proxy route and hands the resulting WebSocket
endpoint to a debug adapter.`,
		SilenceUsage: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			rootCmdLogger.Flush()
		},
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	rootCmdLogger = logger.New("nodeattach")
	rootCmdLogger.AddLevelFlag(rootCmd.PersistentFlags())

	var err error
	var cmd *cobra.Command

	if cmd, err = NewAttachCommand(rootCmdLogger.Logger); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'attach' command: %w", err)
	}

	if cmd, err = NewSitesCommand(rootCmdLogger.Logger); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'sites' command: %w", err)
	}

	if cmd, err = NewVersionCommand(rootCmdLogger.Logger); cmd != nil {
		rootCmd.AddCommand(cmd)
	} else {
		return nil, fmt.Errorf("Could not set up 'version' command: %w", err)
	}

	return rootCmd, nil
}

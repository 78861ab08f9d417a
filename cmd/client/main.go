// Command client is an interactive terminal client for the chat server
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	configFile  string
	server      string
	historyPath string
	logFile     string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "zentalk",
		Short: "Zentalk terminal chat client",
		Long: `Connects to a Zentalk server and opens an interactive shell.
Type /help in the shell for the list of commands.`,
		Example: `
  zentalk -c client.toml
  ZENTALK_CRYPTO_KEY=... zentalk --server 127.0.0.1:9451`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(opts, os.Stdin, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "path to the configuration file (TOML format)")
	cmd.Flags().StringVarP(&opts.server, "server", "s", "", "server address, host:port or multiaddr (overrides client.host and client.port)")
	cmd.Flags().StringVar(&opts.historyPath, "history", "", "local history database (overrides client.historyPath)")
	cmd.Flags().StringVar(&opts.logFile, "log", "", "log file (overrides log.file)")

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

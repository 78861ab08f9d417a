// Command server runs the chat server and its admin API
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options holds the command line configuration
type options struct {
	configFile string
	listen     string
	apiListen  string
	dbURL      string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "zentalk-server",
		Short: "Zentalk chat server",
		Long: `Runs the Zentalk chat server. Clients connect over TCP and exchange
AES-256-GCM encrypted frames using a pre-shared key. Accounts and messages
are kept in SQLite or PostgreSQL.

Every configuration key can be set in the TOML file or overridden with an
environment variable named ZENTALK_<SECTION>_<KEY>, for example
ZENTALK_CRYPTO_KEY.`,
		Example: `
  # Generate a key and start the server
  zentalk-server genkey
  zentalk-server run -c server.toml

  # Listen on a multiaddr and expose the admin API
  zentalk-server run -c server.toml --listen /ip4/0.0.0.0/tcp/9451 --api-listen 127.0.0.1:9452`,
		SilenceUsage: true,
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts)
		},
	}
	run.Flags().StringVarP(&opts.configFile, "config", "c", "", "path to the configuration file (TOML format)")
	run.Flags().StringVar(&opts.listen, "listen", "", "listen address, host:port or multiaddr (overrides server.listen)")
	run.Flags().StringVar(&opts.apiListen, "api-listen", "", "admin API address (overrides api.listen)")
	run.Flags().StringVar(&opts.dbURL, "db", "", "database path or URL (overrides db.url)")
	run.Flags().StringVar(&opts.logLevel, "log-level", "", "ERROR, WARNING, NOTICE, INFO or DEBUG (overrides log.level)")

	cmd.AddCommand(run, genkeyCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command chatsyncd runs the chat sync engine, its websocket relay, and a
// few developer utilities.
package main

import (
	"fmt"
	"os"

	"chat-sync/internal/config"
	"chat-sync/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatsyncd",
	Short: "Real-time chat state sync engine",
	Long: `chatsyncd keeps a local view of a user's conversations in sync with
the chat backend and serves it to a UI over HTTP.

Available subcommands:
  run    - Run the sync engine and its local HTTP API
  relay  - Run the websocket relay between clients and redis pub/sub
  emit   - Publish an event envelope read from stdin
  token  - Mint an access token for a user`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger picks the log format from the environment unless --verbose asks
// for development output.
func newLogger(cfg *config.Config) *logger.Logger {
	mode := cfg.Server.Environment
	if verbose {
		mode = logger.DevelopmentMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	return l
}

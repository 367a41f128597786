package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"chat-sync/internal/config"
	"chat-sync/internal/events"
	chatredis "chat-sync/internal/redis"

	"github.com/spf13/cobra"
)

var (
	emitChannel string
	emitFile    string
)

// emitCmd publishes backend events by hand
var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Publish an event envelope read from stdin",
	Long: `Publish one event envelope to a redis channel, as the backend would.

The envelope is read as JSON from stdin, or from --file. A missing
occurred_at is set to the current time. Useful for driving a running
engine or relay during development:

  echo '{"event_type":"typing.started","payload":{...}}' | \
    chatsyncd emit --channel channel:conversation:c1`,
	RunE: runEmit,
}

func init() {
	emitCmd.Flags().StringVarP(&emitChannel, "channel", "c", "", "Destination channel (required)")
	emitCmd.Flags().StringVarP(&emitFile, "file", "f", "", "Read the envelope from this file instead of stdin")
	_ = emitCmd.MarkFlagRequired("channel")
}

func runEmit(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if emitFile != "" {
		f, err := os.Open(emitFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	env, err := readEnvelope(in)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	client := chatredis.NewClient(redisConfig(cfg))
	defer client.Close()

	if err := chatredis.NewPublisher(client).PublishEnvelope(cmd.Context(), emitChannel, env); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", env.EventType, emitChannel)
	return nil
}

func readEnvelope(r io.Reader) (events.Envelope, error) {
	var env events.Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType == "" {
		return env, errors.New("envelope event_type is required")
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

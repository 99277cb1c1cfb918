package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harveysanders/sidegrade/smartsign/mqtt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pushCmd = &cobra.Command{
	Use:   "push [text]",
	Short: "Publish sign text to the MQTT topic",
	Long: `push publishes text as a retained message on the sign's topic. Rows are
separated by "\n" escapes or real newlines. With no argument the text is read
from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	text, err := pushText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	conn, err := tcpDialer(cfg.Broker)(ctx)
	if err != nil {
		return fmt.Errorf("dialing broker %s: %w", cfg.Broker, err)
	}
	id := "signsim-push-" + uuid.NewString()[:8]
	if err := mqtt.Announce(ctx, conn, id, cfg.Topic, text); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d bytes to %s\n", len(text), cfg.Topic)
	return nil
}

// pushText returns the argument with "\n" escapes expanded, or stdin.
func pushText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return strings.ReplaceAll(args[0], `\n`, "\n"), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, mqtt.MaxPayload))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

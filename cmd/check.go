package cmd

import (
	"fmt"

	"phrasebot/pkg/channel/telegram"
	"phrasebot/pkg/config"

	"github.com/spf13/cobra"
)

// checkCmd validates configuration without starting the bot, so broken
// deployments fail in CI instead of at the first inbound message.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		if cfg.Channels.Telegram.Enabled {
			if _, err := telegram.NewAdapter(cfg.Channels.Telegram, nil); err != nil {
				return err
			}
		}

		fmt.Printf("configuration ok: %d key phrase(s), %d fallback repl%s, %d command(s), owner %s\n",
			len(cfg.Responder.KeyPhrases),
			len(cfg.Responder.FallbackReplies),
			plural(len(cfg.Responder.FallbackReplies), "y", "ies"),
			len(cfg.Responder.Commands),
			ownerSummary(cfg.Channels.Telegram.OwnerID),
		)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}

	return pluralForm
}

func ownerSummary(ownerID string) string {
	if ownerID == "" {
		return "unset (notifications disabled)"
	}

	return "configured"
}

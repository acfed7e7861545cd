package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "phrasebot",
	Short: "Key-phrase Telegram bot",
	Long:  "Phrasebot replies to configured key phrases, notifies the bot owner when one fires, and answers everything else with a random fallback reply.",
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

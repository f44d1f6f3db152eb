package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var intentCmd = &cobra.Command{
	Use:   "intent [transcript]",
	Short: "Extract the job intent from a transcript and print it as JSON",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		lang, _ := cmd.Flags().GetString("lang")
		runIntent(strings.Join(args, " "), lang)
	},
}

func init() {
	rootCmd.AddCommand(intentCmd)

	intentCmd.Flags().StringP("lang", "l", "hi-IN", "language hint passed with the transcript")
}

func runIntent(transcript, lang string) {
	ctx := context.Background()
	config, logger := setup()
	defer logger.Sync()

	assistant := newAssistant(ctx, config.AI, logger)
	intent := assistant.Extract(ctx, transcript, lang)

	pretty, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		logger.Fatal("encoding intent", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

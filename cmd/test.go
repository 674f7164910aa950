package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/drivenotify/internal/pipeline"
)

var testTo string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send the test message",
	Long:  `Sends the test_message template to --to, or to recipients.test_number when --to is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCLISend(1, func(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Response, error) {
			return p.SendTest(ctx, testTo)
		})
	},
}

func init() {
	testCmd.Flags().StringVar(&testTo, "to", "", "phone number to send the test message to")
	rootCmd.AddCommand(testCmd)
}

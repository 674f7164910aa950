package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "drivenotify",
	Short: "WhatsApp notifications for Google Drive events",
	Long: `drivenotify receives Google Drive change events over a webhook, decides who
should hear about them, and delivers a formatted WhatsApp message to each
recipient through the Meta Cloud API or Twilio. Every event is logged with
its final delivery counts.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "drivenotify.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

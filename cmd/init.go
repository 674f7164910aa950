package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ziadkadry99/drivenotify/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize drivenotify configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose a WhatsApp channel and recipients, and writes drivenotify.yml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

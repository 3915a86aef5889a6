package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "crmagent",
	Short: "AI assistant for logging pharma rep interactions with HCPs",
	Long: `crmagent turns a sales representative's free-text note about a meeting
with a healthcare professional into a structured CRM record. It extracts the
details with an LLM, scores sentiment, suggests follow-ups and stores the
result, and lets the rep correct stored records in plain language.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".crmagent.yml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

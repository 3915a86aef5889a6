package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/crm-agent/internal/records"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the sample HCPs into the database",
	Long:  `Adds the default healthcare professionals. Names that already exist are skipped, so the command is safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		added, err := a.records.Seed(cmd.Context(), records.DefaultHCPs)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		for _, h := range added {
			fmt.Printf("  + %s (%s)\n", h.Name, h.ID)
		}
		fmt.Printf("Seeded %d HCP(s), %d already present\n", len(added), len(records.DefaultHCPs)-len(added))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

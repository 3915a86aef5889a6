package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var editRep string

var editCmd = &cobra.Command{
	Use:   "edit <interaction-id> <instruction>",
	Short: "Correct a stored interaction in plain language",
	Example: `  crmagent edit 5f0c... "sentiment was actually negative"
  crmagent edit 5f0c... "change the date to 2025-03-05 14:00"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.pipeline.Edit(cmd.Context(), args[0], strings.Join(args[1:], " "), editRep)
		if !res.Success {
			return errors.New(res.Error)
		}

		fmt.Fprintf(os.Stderr, "Updated %d field(s)\n", len(res.Changes))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Interaction)
	},
}

func init() {
	editCmd.Flags().StringVar(&editRep, "rep", "", "representative recorded as the editor")
	rootCmd.AddCommand(editCmd)
}

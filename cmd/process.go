package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	processRep  string
	processJSON bool
)

var processCmd = &cobra.Command{
	Use:   "process <note>",
	Short: "Log an interaction from a free-text note",
	Long: `Runs the agent pipeline over a note, stores the resulting interaction and
prints the assistant's reply. Use --json for the full result.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.pipeline.Process(cmd.Context(), strings.Join(args, " "), processRep)
		if processJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else if res.Success {
			fmt.Println(res.AIResponse)
		}

		if !res.Success {
			return errors.New(res.Error)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processRep, "rep", "", "representative ID (defaults to config default_rep_id)")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(processCmd)
}

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var crisisCmd = &cobra.Command{
	Use:   "crisis",
	Short: "Scan top headlines for an ongoing misinformation crisis",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("crisis"); err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		ev, err := env.Crisis.Status(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"crisis": ev})
	},
}

func init() {
	rootCmd.AddCommand(crisisCmd)
}

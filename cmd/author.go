package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/misintel/misintel/internal/model"
)

var authorCmd = &cobra.Command{
	Use:   "author <url>",
	Short: "Attribute an article URL to its author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("author"); err != nil {
			return err
		}
		if !model.IsHTTPURL(args[0]) {
			return eris.Errorf("not an http(s) URL: %s", args[0])
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		info := env.Authors.Extract(cmd.Context(), args[0])

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

func init() {
	rootCmd.AddCommand(authorCmd)
}

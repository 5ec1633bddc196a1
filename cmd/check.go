package main

import (
	"encoding/json"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/misintel/misintel/internal/model"
)

var (
	checkText  string
	checkURL   string
	checkImage string
	checkAudio string
	checkFresh bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one check and print the result as JSON",
	Example: `  misintel check --text "5G towers spread viruses"
  misintel check --url https://example.com/story --fresh
  misintel check --image screenshot.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("check"); err != nil {
			return err
		}

		req, err := checkRequest()
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Checker.Check(cmd.Context(), req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// checkRequest builds the request from whichever input flag is set.
func checkRequest() (model.AnalysisRequest, error) {
	switch {
	case checkURL != "":
		return model.AnalysisRequest{Kind: model.KindURL, URL: checkURL, ForceFresh: checkFresh}, nil
	case checkImage != "":
		data, mt, err := readInputFile(checkImage)
		if err != nil {
			return model.AnalysisRequest{}, err
		}
		return model.AnalysisRequest{Kind: model.KindImage, Image: data, ImageType: mt}, nil
	case checkAudio != "":
		data, mt, err := readInputFile(checkAudio)
		if err != nil {
			return model.AnalysisRequest{}, err
		}
		return model.AnalysisRequest{Kind: model.KindAudio, Audio: data, AudioType: mt}, nil
	case checkText != "":
		return model.AnalysisRequest{Kind: model.KindText, Text: checkText}, nil
	default:
		return model.AnalysisRequest{}, eris.New("one of --text, --url, --image or --audio is required")
	}
}

// readInputFile returns the file contents and a MIME type guessed from the
// extension, then from the content.
func readInputFile(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "read %s", path)
	}
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	return data, mt, nil
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkText, "text", "", "text claim to check")
	f.StringVar(&checkURL, "url", "", "article URL to check")
	f.StringVar(&checkImage, "image", "", "path to an image to OCR and check")
	f.StringVar(&checkAudio, "audio", "", "path to an audio clip to transcribe and check")
	f.BoolVar(&checkFresh, "fresh", false, "bypass the result cache for --url")
	checkCmd.MarkFlagsMutuallyExclusive("text", "url", "image", "audio")
	rootCmd.AddCommand(checkCmd)
}

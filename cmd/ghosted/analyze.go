package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/livinlefevreloca/ghosted/internal/analyzer"
	"github.com/spf13/cobra"
)

func (a *app) analyzeCmd() *cobra.Command {
	var (
		file   string
		images []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Guess why the conversation died",
		Long: `Reads a chat log from --file (or stdin when neither --file nor --image is
given) and any screenshots passed with --image, then asks the configured
classifier for a cause of death.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := analyzer.Request{}

			switch {
			case file == "-" || (file == "" && len(images) == 0):
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				req.Text = string(data)
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read chat log: %w", err)
				}
				req.Text = string(data)
			}

			for _, path := range images {
				image, err := analyzer.LoadImage(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				req.Images = append(req.Images, image)
			}

			classifier, err := analyzer.New(a.cfg.Analyzer, a.logger)
			if err != nil {
				return err
			}

			result, err := classifier.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				return a.writeJSON(result)
			}
			fmt.Fprintf(a.out, "Cause of death: %s\n", result.Cause)
			fmt.Fprintf(a.out, "Advice:         %s\n", result.Suggestion)
			if len(result.Keywords) > 0 {
				fmt.Fprintf(a.out, "Keywords:       %s\n", strings.Join(result.Keywords, ", "))
			}
			if result.Details != "" {
				fmt.Fprintf(a.out, "Details:        %s\n", result.Details)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Chat log to analyze (- for stdin)")
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "Screenshot to analyze (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

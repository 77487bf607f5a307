package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MegaGrindStone/ad-insights/internal/images"
	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/spf13/cobra"
)

const analyzeLongDesc string = `Run one analysis on two local files and print the three responses.

Examples:
  adinsights analyze --image advert.png --heatmap heatmap.png
  adinsights analyze -i advert.jpg -m heatmap.png --transcript`

const analyzeShortDesc string = "Analyse an advert and its heatmap"

type analyzeCommander struct {
	root *rootCommander

	imagePath   string
	heatmapPath string
	transcript  bool
}

func newAnalyzeCmd(root *rootCommander) *cobra.Command {
	cmder := &analyzeCommander{root: root}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.imagePath, "image", "i", "", "Path to the advert image")
	cmd.Flags().StringVarP(&cmder.heatmapPath, "heatmap", "m", "", "Path to the attention heatmap")
	cmd.Flags().BoolVar(&cmder.transcript, "transcript", false, "Print the summary conversation")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("heatmap")

	return cmd
}

func (c *analyzeCommander) run(ctx context.Context, out io.Writer) error {
	logger := c.root.logger()

	cfg, err := c.root.config(logger)
	if err != nil {
		return err
	}

	loader := images.NewLoader(".", logger)
	image, err := readImage(loader, c.imagePath)
	if err != nil {
		return err
	}
	heatmap, err := readImage(loader, c.heatmapPath)
	if err != nil {
		return err
	}

	wf, err := c.root.workflow(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := wf.Run(ctx, workflow.Input{Image: image, Heatmap: heatmap})
	if err != nil {
		return err
	}

	return printResult(out, res, c.transcript)
}

// readImage reads a file given on the command line. Unlike names sent to the service, the path
// may point anywhere on the filesystem.
func readImage(loader images.Loader, path string) (models.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	return loader.Read(path, f)
}

func printResult(out io.Writer, res workflow.Result, transcript bool) error {
	sections := []struct {
		title string
		msg   models.Message
	}{
		{"Heatmap saliency", res.ResponseA},
		{"Cognitive load", res.ResponseB},
		{"Summary", res.ResponseC},
	}
	for _, s := range sections {
		if _, err := fmt.Fprintf(out, "## %s\n\n%s\n\n", s.title, s.msg.Text()); err != nil {
			return fmt.Errorf("error writing result: %w", err)
		}
	}

	if transcript {
		if _, err := fmt.Fprintf(out, "## Transcript\n\n%s\n", res.Transcript.Render()); err != nil {
			return fmt.Errorf("error writing transcript: %w", err)
		}
	}

	return nil
}

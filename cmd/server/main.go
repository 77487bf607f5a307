package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MegaGrindStone/ad-insights/internal/prompts"
	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/spf13/cobra"
)

const rootLongDesc string = `Analyse an advert and its visual-attention heatmap with a vision-capable chat model.

The analysis describes the salient regions of the heatmap, assesses the cognitive load of the
advert and summarizes both.

Examples:
  adinsights serve --port 8080
  adinsights analyze --image advert.png --heatmap heatmap.png`

const rootShortDesc string = "Ad image and heatmap analysis"

type rootCommander struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmder := &rootCommander{}

	serveCmd := newServeCmd(cmder)

	cmd := &cobra.Command{
		Use:          "adinsights",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
		// Serving is the default action.
		RunE: serveCmd.RunE,
	}

	cmd.PersistentFlags().StringVarP(&cmder.configPath, "config", "c", "", "Path to the config file")
	cmd.PersistentFlags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")
	cmd.Flags().AddFlagSet(serveCmd.Flags())

	cmd.AddCommand(serveCmd, newAnalyzeCmd(cmder))

	return cmd
}

func (c *rootCommander) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *rootCommander) config(logger *slog.Logger) (config, error) {
	path, mustExist := c.configPath, true
	if path == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return config{}, err
		}
		path, mustExist = p, false
	}

	cfg, err := loadConfig(path, mustExist)
	if err != nil {
		return config{}, err
	}
	logger.Info("Config loaded", slog.String("path", path))

	return cfg, nil
}

// workflow builds the analysis workflow from cfg. The model is probed before it is returned, so a
// misconfigured provider fails here.
func (c *rootCommander) workflow(ctx context.Context, cfg config, logger *slog.Logger) (workflow.Workflow, error) {
	llm, err := cfg.LLM.llm(ctx, logger)
	if err != nil {
		return workflow.Workflow{}, fmt.Errorf("error configuring llm: %w", err)
	}

	logger.Info("Checking model")
	llm, err = workflow.NewLLM(ctx, llm)
	if err != nil {
		return workflow.Workflow{}, err
	}

	var set prompts.Set
	if cfg.PromptsDir != "" {
		logger.Info("Loading prompts", slog.String("dir", cfg.PromptsDir))
		set, err = prompts.Load(os.DirFS(cfg.PromptsDir))
	} else {
		set, err = prompts.Default()
	}
	if err != nil {
		return workflow.Workflow{}, err
	}

	return workflow.New(llm, set, logger, workflow.WithTimeout(cfg.RunTimeout)), nil
}

// Package workflow orchestrates the analysis of an advert and its attention heatmap. A run issues
// four model turns: the advert description and the heatmap saliency (Task A, chained), the
// cognitive load (Task B) and the summary of both (Task C).
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/ad-insights/internal/models"
	"github.com/MegaGrindStone/ad-insights/internal/prompts"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Workflow runs analyses against a single model with a fixed set of prompt templates. It holds no
// per-run state and is safe for concurrent use.
type Workflow struct {
	llm     LLM
	prompts prompts.Set
	timeout time.Duration

	logger *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithTimeout bounds the duration of a whole run. A zero duration disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.timeout = d
	}
}

// Input holds the images of a single run.
type Input struct {
	// RunID identifies the run in logs and turn events. A random UUID is used when empty.
	RunID   string
	Image   models.Attachment
	Heatmap models.Attachment
	// Observer, when set, receives the turn events of the run.
	Observer Observer
}

// Result holds the three final responses of a run.
type Result struct {
	RunID string
	// ResponseA is the saliency description, ResponseB the cognitive-load assessment and ResponseC
	// the summary.
	ResponseA models.Message
	ResponseB models.Message
	ResponseC models.Message
	// Transcript is the Task C conversation followed by ResponseC.
	Transcript models.Conversation
}

// New creates a Workflow that sends the templates of set to llm.
func New(llm LLM, set prompts.Set, logger *slog.Logger, opts ...Option) Workflow {
	w := Workflow{
		llm:     llm,
		prompts: set,
		logger:  logger.With(slog.String("module", "workflow")),
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// Run analyses the advert image and its heatmap. Task A and Task B run concurrently and are joined
// before Task C. A failure in any turn cancels the run and no partial result is returned.
func (w Workflow) Run(ctx context.Context, in Input) (Result, error) {
	runID := in.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	r := run{
		id:       runID,
		llm:      w.llm,
		observer: in.Observer,
		logger:   w.logger.With(slog.String("runID", runID)),
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	a1 := w.prompts.AdvertDescription.WithImage(in.Image)
	a2 := w.prompts.HeatmapSaliency.WithImage(in.Heatmap)
	b := w.prompts.CognitiveLoad.WithImage(in.Image)
	r.logger.Debug("Prompts prepared",
		slog.Int("imageSize", in.Image.Size()),
		slog.Int("heatmapSize", in.Heatmap.Size()))

	var responseA, responseB models.Message

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("Running Task A - Chain of thought")
		description, _, err := r.turn(gctx, TurnAdvertDescription, a1)
		if err != nil {
			return fmt.Errorf("task A: %w", err)
		}
		// The second turn starts again from the image-less template so that only the heatmap is
		// attached to the follow-up question.
		conv := w.prompts.AdvertDescription.Append(description).Concat(a2)
		responseA, _, err = r.turn(gctx, TurnHeatmapSaliency, conv)
		if err != nil {
			return fmt.Errorf("task A: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r.logger.Info("Running Task B - Cognitive load")
		var err error
		responseB, _, err = r.turn(gctx, TurnCognitiveLoad, b)
		if err != nil {
			return fmt.Errorf("task B: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.Error("Run aborted", slog.String(errLoggerKey, err.Error()))
		return Result{}, err
	}

	r.logger.Info("Running Task C - Summarise information")
	c := w.prompts.Summary.Append(responseA, responseB)
	responseC, transcript, err := r.turn(ctx, TurnSummary, c)
	if err != nil {
		r.logger.Error("Run aborted", slog.String(errLoggerKey, err.Error()))
		return Result{}, fmt.Errorf("task C: %w", err)
	}

	r.logger.Info("Tasks A, B and C completed successfully")

	return Result{
		RunID:      runID,
		ResponseA:  responseA,
		ResponseB:  responseB,
		ResponseC:  responseC,
		Transcript: transcript,
	}, nil
}

const errLoggerKey = "err"

type run struct {
	id       string
	llm      LLM
	observer Observer

	logger *slog.Logger
}

func (r run) turn(ctx context.Context, t Turn, conv models.Conversation) (models.Message, models.Conversation, error) {
	r.notify(TurnEvent{RunID: r.id, Turn: t, State: TurnStarted})
	r.logger.Debug("Turn started",
		slog.String("turn", string(t)),
		slog.Int("messages", len(conv)),
		slog.String("conversation", conv.Render()))

	start := time.Now()
	res, extended, err := ExecuteAppend(ctx, r.llm, conv)
	elapsed := time.Since(start)
	if err != nil {
		r.notify(TurnEvent{RunID: r.id, Turn: t, State: TurnFailed, Elapsed: elapsed, Err: err})
		return models.Message{}, nil, fmt.Errorf("%s: %w", t, err)
	}

	r.notify(TurnEvent{RunID: r.id, Turn: t, State: TurnCompleted, Elapsed: elapsed})
	r.logger.Debug("Turn completed",
		slog.String("turn", string(t)),
		slog.Duration("elapsed", elapsed),
		slog.Int("responseLength", len(res.Text())))

	return res, extended, nil
}

func (r run) notify(e TurnEvent) {
	if r.observer == nil {
		return
	}
	r.observer.OnTurn(e)
}

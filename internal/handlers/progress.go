package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/MegaGrindStone/ad-insights/internal/workflow"
	"github.com/tmaxmax/go-sse"
)

type progressEvent struct {
	RunID     string `json:"runID"`
	Turn      string `json:"turn"`
	State     string `json:"state"`
	ElapsedMS int64  `json:"elapsedMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

type runEndEvent struct {
	RunID string `json:"runID"`
	Error string `json:"error,omitempty"`
}

// progressPublisher forwards the turn events of a run to the clients subscribed to its topic.
type progressPublisher struct {
	sseSrv *sse.Server
	logger *slog.Logger
}

func runIDTopic(runID string) string {
	return "run-" + runID
}

func (p progressPublisher) OnTurn(e workflow.TurnEvent) {
	ev := progressEvent{
		RunID:     e.RunID,
		Turn:      string(e.Turn),
		State:     string(e.State),
		ElapsedMS: e.Elapsed.Milliseconds(),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	publishJSON(p.sseSrv, p.logger, "progress", ev, runIDTopic(e.RunID))
}

func (m Main) publishRunEnd(runID string, err error) {
	ev := runEndEvent{RunID: runID}
	if err != nil {
		ev.Error = err.Error()
	}
	publishJSON(m.sseSrv, m.logger, "runEnd", ev, runIDTopic(runID))
}

func publishJSON(srv *sse.Server, logger *slog.Logger, typ string, v any, topic string) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal event", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := &sse.Message{Type: sse.Type(typ)}
	msg.AppendData(string(b))
	if err := srv.Publish(msg, topic); err != nil {
		logger.Debug("Failed to publish event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
	}
}

package workflow

import "time"

// Turn identifies one of the four model turns of a run.
type Turn string

// The turns of a run, in the order they are defined in the analysis.
const (
	TurnAdvertDescription Turn = "advert_description"
	TurnHeatmapSaliency   Turn = "heatmap_saliency"
	TurnCognitiveLoad     Turn = "cognitive_load"
	TurnSummary           Turn = "summary"
)

// TurnState is the state reported for a turn.
type TurnState string

// States reported to an Observer.
const (
	TurnStarted   TurnState = "started"
	TurnCompleted TurnState = "completed"
	TurnFailed    TurnState = "failed"
)

// TurnEvent describes a state change of a turn within a run.
type TurnEvent struct {
	RunID string
	Turn  Turn
	State TurnState
	// Elapsed is set for completed and failed turns.
	Elapsed time.Duration
	// Err is set for failed turns.
	Err error
}

// Observer receives turn events of a run. Tasks A and B run concurrently, so an Observer must be
// safe for concurrent use.
type Observer interface {
	OnTurn(TurnEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(TurnEvent)

// OnTurn calls f(e).
func (f ObserverFunc) OnTurn(e TurnEvent) {
	f(e)
}

package prompts

import (
	"fmt"
	"io/fs"

	adinsights "github.com/MegaGrindStone/ad-insights"
	"github.com/MegaGrindStone/ad-insights/internal/models"
)

// Template file names, relative to the prompts directory.
const (
	AdvertDescriptionFile = "prompt_a1.txt"
	HeatmapSaliencyFile   = "prompt_a2.txt"
	CognitiveLoadFile     = "prompt_b.txt"
	SummaryFile           = "prompt_c.txt"
)

// Set holds the parsed conversations of the four analysis turns. A Set is read once at startup and
// shared read-only by every run.
type Set struct {
	// AdvertDescription asks for the key elements of the advert (Task A, first turn).
	AdvertDescription models.Conversation
	// HeatmapSaliency asks for the visually salient elements given the heatmap (Task A, second turn).
	HeatmapSaliency models.Conversation
	// CognitiveLoad asks for the perceptual and cognitive load of the advert (Task B).
	CognitiveLoad models.Conversation
	// Summary asks to synthesize the previous answers (Task C).
	Summary models.Conversation
}

// Load reads and parses the four template files from fsys.
func Load(fsys fs.FS) (Set, error) {
	var set Set
	files := []struct {
		name string
		dst  *models.Conversation
	}{
		{AdvertDescriptionFile, &set.AdvertDescription},
		{HeatmapSaliencyFile, &set.HeatmapSaliency},
		{CognitiveLoadFile, &set.CognitiveLoad},
		{SummaryFile, &set.Summary},
	}

	for _, f := range files {
		raw, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return Set{}, fmt.Errorf("error reading prompt %s: %w", f.name, err)
		}
		conv, err := Parse(string(raw))
		if err != nil {
			return Set{}, fmt.Errorf("error parsing prompt %s: %w", f.name, err)
		}
		*f.dst = conv
	}

	return set, nil
}

// Default loads the templates embedded in the binary.
func Default() (Set, error) {
	fsys, err := fs.Sub(adinsights.PromptFS, "prompts")
	if err != nil {
		return Set{}, fmt.Errorf("error opening embedded prompts: %w", err)
	}
	return Load(fsys)
}

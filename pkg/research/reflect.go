package research

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Picker chooses an index in [0, n). *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// NewPicker returns a deterministic picker for a non-zero seed and the
// process-wide source otherwise.
func NewPicker(seed uint64) Picker {
	if seed == 0 {
		return globalPicker{}
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// FallbackQueries lists the follow-up queries used when reflection fails.
func FallbackQueries(topic string) []string {
	return []string{
		"latest developments in " + topic,
		"important aspects of " + topic,
		"key information about " + topic,
		"Tell me more about " + topic,
	}
}

type reflectionResponse struct {
	KnowledgeGap  string `json:"knowledge_gap"`
	FollowUpQuery string `json:"follow_up_query"`
}

// reflect asks the model for the next query. note is non-empty only when the
// call itself failed and must be appended to the running summary.
func (e *ResearchEngine) reflect(ctx context.Context, topic, summary string) (query, note string) {
	user := "Identify a knowledge gap and generate a follow-up web search query based on our existing knowledge: " + summary
	reply, err := e.LLM.Generate(ctx, reflectionPrompt(topic), user, true)
	if err != nil {
		e.Logger.Warn("Reflection failed, using fallback query", "error", err)
		note = fmt.Sprintf("\n\nNote: Failed to generate follow-up query due to LLM error: %v", err)
		return e.fallbackQuery(topic), note
	}

	var resp reflectionResponse
	if err := decodeStructured(reply, &resp); err != nil {
		e.Logger.Warn("Unparsable reflection reply, using fallback query", "error", err)
		return e.fallbackQuery(topic), ""
	}
	if q := strings.TrimSpace(resp.FollowUpQuery); q != "" {
		e.Logger.Info("Reflection complete", "knowledge_gap", resp.KnowledgeGap, "follow_up_query", q)
		return q, ""
	}

	e.Logger.Warn("Reflection reply has no follow_up_query, using fallback query")
	return e.fallbackQuery(topic), ""
}

func (e *ResearchEngine) fallbackQuery(topic string) string {
	queries := FallbackQueries(topic)
	return queries[e.Picker.IntN(len(queries))]
}

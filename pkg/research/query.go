package research

import (
	"context"
	"strings"
)

type queryResponse struct {
	Query     string `json:"query"`
	Aspect    string `json:"aspect"`
	Rationale string `json:"rationale"`
}

// formulateQuery asks the model for the first search query. Any failure
// falls back to the topic itself.
func (e *ResearchEngine) formulateQuery(ctx context.Context, topic string) string {
	reply, err := e.LLM.Generate(ctx, queryWriterPrompt(topic), "Generate a query for web search:", true)
	if err != nil {
		e.Logger.Warn("Query generation failed, using topic", "error", err)
		return topic
	}

	var resp queryResponse
	if err := decodeStructured(reply, &resp); err != nil {
		e.Logger.Warn("Unparsable query reply, using topic", "error", err, "reply", reply)
		return topic
	}
	query := strings.TrimSpace(resp.Query)
	if query == "" {
		e.Logger.Warn("Query reply has no query field, using topic")
		return topic
	}

	e.Logger.Info("Generated query", "query", query, "aspect", resp.Aspect)
	return query
}

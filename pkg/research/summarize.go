package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errEmptySummary = errors.New("summary is empty after removing reasoning traces")

// summaryMessage embeds the topic, the prior summary when there is one, and
// the newest aggregated results.
func summaryMessage(topic, existing, latest string) string {
	if existing != "" {
		return fmt.Sprintf("<User Input> \n %s \n <User Input>\n\n"+
			"<Existing Summary> \n %s \n <Existing Summary>\n\n"+
			"<New Search Results> \n %s \n <New Search Results>", topic, existing, latest)
	}
	return fmt.Sprintf("<User Input> \n %s \n <User Input>\n\n"+
		"<Search Results> \n %s \n <Search Results>", topic, latest)
}

// summarize folds the latest results into the running summary. It never
// fails: a broken call keeps the prior summary with a note, or echoes the raw
// results on the first round.
func (e *ResearchEngine) summarize(ctx context.Context, s ResearchState) string {
	latest := s.latestRaw()
	reply, err := e.LLM.Generate(ctx, summarizerInstructions, summaryMessage(s.Topic, s.Summary, latest), false)
	if err == nil {
		reply = strings.TrimSpace(StripThinking(reply))
		if reply == "" {
			err = errEmptySummary
		}
	}
	if err != nil {
		e.Logger.Warn("Summarization failed", "error", err, "has_summary", s.Summary != "")
		if s.Summary != "" {
			return s.Summary + fmt.Sprintf("\n\nNote: Failed to summarize new sources due to LLM error: %v", err)
		}
		return fmt.Sprintf("Research on: %s\n\nRaw search results:\n%s", s.Topic, latest)
	}
	return reply
}

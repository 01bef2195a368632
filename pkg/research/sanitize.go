package research

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"

	// maxStripPasses caps StripThinking on pathological input.
	maxStripPasses = 1000
)

// StripThinking removes every <think>...</think> span. Each pass removes one
// complete span, so the text strictly shrinks; an unmatched tag is left alone.
func StripThinking(text string) string {
	return stripSpans(text, thinkOpen, thinkClose, maxStripPasses)
}

func stripSpans(text, openTag, closeTag string, maxPasses int) string {
	for range maxPasses {
		start := strings.Index(text, openTag)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(openTag):], closeTag)
		if end < 0 {
			break
		}
		end += start + len(openTag) + len(closeTag)
		text = text[:start] + text[end:]
	}
	return text
}

var errNoJSONObject = errors.New("reply does not contain a JSON object")

// decodeStructured parses a structured-mode reply. Models wrap JSON in code
// fences or reasoning traces often enough that the outermost object is cut
// out before decoding.
func decodeStructured(reply string, v any) error {
	reply = StripThinking(reply)
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(reply[start:end+1]), v)
}

package research

import "fmt"

// ConfigurationError reports an invalid setting, such as an unknown search
// provider. It is raised before any network call and never retried.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %s=%q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid configuration %s=%q", e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SearchProviderError wraps a transport, auth or decoding failure of a search provider.
type SearchProviderError struct {
	Provider string
	Err      error
}

func (e *SearchProviderError) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Provider, e.Err)
}

func (e *SearchProviderError) Unwrap() error { return e.Err }

// LanguageModelError wraps a failed model call or an unparsable structured reply.
type LanguageModelError struct {
	Model string
	Err   error
}

func (e *LanguageModelError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("language model call failed: %v", e.Err)
	}
	return fmt.Sprintf("language model %s failed: %v", e.Model, e.Err)
}

func (e *LanguageModelError) Unwrap() error { return e.Err }

// SessionError ends a session. State is the last consistent snapshot, so
// callers can report whatever partial summary existed when it happened.
type SessionError struct {
	Step  Step
	State ResearchState
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("research halted during %s: %v", e.Step, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

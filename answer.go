package semanticrouter

// Source says where the text of an Answer came from.
type Source string

const (
	// SourceHit means the answer was served from the index.
	SourceHit Source = "hit"
	// SourceFallback means the fallback produced the answer.
	SourceFallback Source = "fallback"
	// SourceApology means the fallback failed and the apology text was used.
	SourceApology Source = "apology"
	// SourceNotConfigured means the fallback had no credential.
	SourceNotConfigured Source = "not-configured"
	// SourceError means the question could not be embedded or looked up.
	SourceError Source = "error"
)

// Answer is what Ask returns for every question.
type Answer struct {
	Question string `json:"question"`
	Text     string `json:"answer"`
	Source   Source `json:"source"`

	// MatchedQuestion and Score describe the nearest entry, when one was found.
	MatchedQuestion string  `json:"matched_question,omitempty"`
	Score           float32 `json:"score"`
}

// Hit reports whether the answer came from the index.
func (a Answer) Hit() bool { return a.Source == SourceHit }

package models

const SuggestionType = "suggestion"

// Suggestion is the advisor's next-step hint for a subject.
type Suggestion struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

package ai

import "context"

// DraftInput describes the question set an admin wants drafted.
type DraftInput struct {
	Topic string
	Count int
}

// DraftQuestion is one generated question proposal.
type DraftQuestion struct {
	Kind        string            `json:"kind"`
	Text        string            `json:"text"`
	Options     map[string]string `json:"options"`
	CorrectKeys []string          `json:"correct_keys"`
}

// Drafter describes a model capable of proposing quiz questions.
type Drafter interface {
	Draft(ctx context.Context, input DraftInput) ([]DraftQuestion, error)
}

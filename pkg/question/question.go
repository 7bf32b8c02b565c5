// Package question defines practice questions and the generator capability
// that produces them. The engine consumes a Generator as an opaque
// collaborator; the only implementation in this repo is the Ollama-backed
// one in the ollama subpackage.
package question

import (
	"context"
	"errors"
	"fmt"
)

// Difficulty grades a practice question.
type Difficulty string

// Supported difficulty levels.
const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty validates a difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case Easy, Medium, Hard:
		return Difficulty(s), nil
	case "":
		return Easy, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// TableSchema describes one table of a question's dataset. Descriptive only;
// the engine materializes state from SetupSQL, not from this.
type TableSchema struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	SampleData [][]any  `json:"sample_data"`
}

// Question is an immutable practice question.
type Question struct {
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Tables          []TableSchema `json:"tables"`
	SetupSQL        string        `json:"setup_sql"`
	ExpectedQuery   string        `json:"expected_query"`
	ExpectedColumns []string      `json:"expected_columns"`
	Hints           []string      `json:"hints"`
}

// Validate checks that a generated question has every field the engine
// depends on.
func (q *Question) Validate() error {
	switch {
	case q.Title == "":
		return errors.New("missing title")
	case q.Description == "":
		return errors.New("missing description")
	case q.SetupSQL == "":
		return errors.New("missing setup_sql")
	case q.ExpectedQuery == "":
		return errors.New("missing expected_query")
	case len(q.ExpectedColumns) == 0:
		return errors.New("missing expected_columns")
	case len(q.Hints) == 0:
		return errors.New("missing hints")
	}
	return nil
}

// Generator produces practice questions.
//
// Implementations distinguish two failure classes so callers can tell "fix
// your input" from "try again later":
//   - ErrInvalid: the backing model produced output that never parsed into a
//     valid Question (after the implementation's own retries).
//   - ErrUnavailable: the backing model could not be reached at all.
//
// The engine never retries a Generator call itself.
type Generator interface {
	Generate(ctx context.Context, difficulty Difficulty, domain string) (*Question, error)
	GenerateCustom(ctx context.Context, prompt string) (*Question, error)
}

// Sentinel errors for the two generator failure classes.
var (
	ErrInvalid     = errors.New("generated question is invalid")
	ErrUnavailable = errors.New("question generator unavailable")
)

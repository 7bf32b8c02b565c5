// Package verify decides whether a user's query produces the same result as
// a question's reference query.
//
// Comparison is deliberately forgiving about row order (the two row
// collections are compared as sets) and collapses duplicate rows, so a
// missing or superfluous DISTINCT is not penalized. This is a documented
// simplification, not an oversight.
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/admmpy/aide/pkg/sqlexec"
)

// ErrInconsistentQuestion signals that the reference query failed against
// its own generated schema. That is a defect in generated content, never a
// user error, and is surfaced distinctly.
var ErrInconsistentQuestion = errors.New("reference query failed against its own schema")

// Verdict is the outcome of checking one answer.
type Verdict struct {
	// Correct is true when both the column names and the row sets match.
	Correct bool

	// User and Expected carry the two executions' results. Expected is zero
	// when the user query failed (the reference query is not run then).
	User     sqlexec.Result
	Expected sqlexec.Result

	// RowDiff is the size of the symmetric difference between the two row
	// sets: a coarse distance metric even when incorrect.
	RowDiff int
}

// Verifier checks answers by running both queries in the same schema.
type Verifier struct {
	executor *sqlexec.Executor
}

// New creates a Verifier on top of an executor.
func New(executor *sqlexec.Executor) *Verifier {
	return &Verifier{executor: executor}
}

// Check executes userQuery and expectedQuery scoped to schema and compares
// their results.
//
// A failing user query yields Correct=false with the failure in
// Verdict.User and no error. A failing reference query yields an error
// wrapping ErrInconsistentQuestion.
func (v *Verifier) Check(ctx context.Context, schema, userQuery, expectedQuery string) (Verdict, error) {
	userRes := v.executor.Execute(ctx, userQuery, sqlexec.Options{Schema: schema})
	if !userRes.OK() {
		return Verdict{User: userRes}, nil
	}

	expectedRes := v.executor.Execute(ctx, expectedQuery, sqlexec.Options{Schema: schema})
	if !expectedRes.OK() {
		return Verdict{}, fmt.Errorf("%w: %s", ErrInconsistentQuestion, expectedRes.Failure.Message)
	}

	userSet := rowSet(userRes.Data.Rows)
	expectedSet := rowSet(expectedRes.Data.Rows)

	correct := columnsMatch(userRes.Data.Columns, expectedRes.Data.Columns) &&
		setsEqual(userSet, expectedSet)

	return Verdict{
		Correct:  correct,
		User:     userRes,
		Expected: expectedRes,
		RowDiff:  symmetricDiff(userSet, expectedSet),
	}, nil
}

// columnsMatch compares column names case-insensitively and
// order-sensitively.
func columnsMatch(user, expected []string) bool {
	if len(user) != len(expected) {
		return false
	}
	for i := range user {
		if !strings.EqualFold(user[i], expected[i]) {
			return false
		}
	}
	return true
}

// rowSet reduces rows to a set of display-string tuples. Duplicate rows
// collapse here.
func rowSet(rows [][]any) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		set[rowKey(row)] = struct{}{}
	}
	return set
}

// rowKey joins a row's display strings with an unprintable separator so
// adjacent values cannot merge into a colliding key.
func rowKey(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = sqlexec.DisplayString(v)
	}
	return strings.Join(parts, "\x1f")
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func symmetricDiff(a, b map[string]struct{}) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; !ok {
			n++
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			n++
		}
	}
	return n
}

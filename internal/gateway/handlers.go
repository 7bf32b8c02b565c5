package gateway

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/admmpy/aide/pkg/practice"
	"github.com/admmpy/aide/pkg/question"
	"github.com/admmpy/aide/pkg/ratelimit"
	"github.com/admmpy/aide/pkg/sqlexec"
	"github.com/admmpy/aide/pkg/verify"
)

// GenerateRequest is the JSON body for POST /v1/practice/generate.
type GenerateRequest struct {
	Difficulty string `json:"difficulty"`
	Domain     string `json:"domain,omitempty"`
}

// GenerateCustomRequest is the JSON body for POST /v1/practice/generate-custom.
type GenerateCustomRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// GenerateResponse carries the generated question and session coordinates.
type GenerateResponse struct {
	Question  *question.Question `json:"question"`
	Schema    string             `json:"schema_name"`
	SessionID string             `json:"session_id"`
}

func (g *Gateway) handleGenerate(c *okapi.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	difficulty, err := question.ParseDifficulty(req.Difficulty)
	if err != nil {
		return c.AbortBadRequest(err.Error())
	}

	result, err := g.engine.StartSession(c.Context(), clientKey(c), difficulty, req.Domain)
	if err != nil {
		return g.practiceError(c, err)
	}
	return c.OK(GenerateResponse{
		Question:  result.Question,
		Schema:    result.Schema,
		SessionID: result.SessionID,
	})
}

func (g *Gateway) handleGenerateCustom(c *okapi.Context) error {
	var req GenerateCustomRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.UserPrompt) < 10 {
		return c.AbortBadRequest("user_prompt must be at least 10 characters")
	}

	result, err := g.engine.StartCustomSession(c.Context(), clientKey(c), req.UserPrompt)
	if err != nil {
		return g.practiceError(c, err)
	}
	return c.OK(GenerateResponse{
		Question:  result.Question,
		Schema:    result.Schema,
		SessionID: result.SessionID,
	})
}

// CheckRequest is the JSON body for POST /v1/practice/check.
type CheckRequest struct {
	Query     string `json:"query"`
	Schema    string `json:"schema_name"`
	SessionID string `json:"session_id"`
}

// CheckResponse reports the verification outcome. When the user's query
// failed, Error carries its message and the result fields stay empty.
type CheckResponse struct {
	Correct         bool     `json:"correct"`
	UserColumns     []string `json:"user_columns"`
	UserRows        [][]any  `json:"user_rows"`
	ExpectedColumns []string `json:"expected_columns"`
	ExpectedRows    [][]any  `json:"expected_rows"`
	RowDiff         int      `json:"row_diff"`
	Error           string   `json:"error,omitempty"`
}

func (g *Gateway) handleCheck(c *okapi.Context) error {
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Query == "" {
		return c.AbortBadRequest("query is required")
	}

	result, err := g.engine.CheckAnswer(c.Context(), req.SessionID, req.Schema, req.Query)
	if err != nil {
		return g.practiceError(c, err)
	}

	resp := CheckResponse{Correct: result.Correct, RowDiff: result.RowDiff}
	if !result.User.OK() {
		resp.Error = result.User.Failure.Message
		return c.OK(resp)
	}
	resp.UserColumns = result.User.Data.Columns
	resp.UserRows = result.User.Data.Rows
	resp.ExpectedColumns = result.Expected.Data.Columns
	resp.ExpectedRows = result.Expected.Data.Rows
	return c.OK(resp)
}

// HintResponse is the JSON response for GET /v1/practice/hint/{session_id}.
type HintResponse struct {
	Hints    []string `json:"hints"`
	Revealed int      `json:"revealed_count"`
}

func (g *Gateway) handleHint(c *okapi.Context) error {
	result, err := g.engine.GetHint(c.Context(), c.Param("session_id"))
	if err != nil {
		return g.practiceError(c, err)
	}
	return c.OK(HintResponse{Hints: result.Hints, Revealed: result.Revealed})
}

// EndSessionResponse is the JSON response for DELETE /v1/practice/session/{session_id}.
type EndSessionResponse struct {
	Status string `json:"status"`
	Schema string `json:"schema_name"`
}

func (g *Gateway) handleEndSession(c *okapi.Context) error {
	schema, err := g.engine.EndSession(c.Context(), c.Param("session_id"))
	if err != nil {
		return g.practiceError(c, err)
	}
	return c.OK(EndSessionResponse{Status: "cleaned", Schema: schema})
}

// SQLExecuteRequest is the JSON body for POST /v1/sql/execute.
type SQLExecuteRequest struct {
	Query  string `json:"query"`
	Schema string `json:"schema_name,omitempty"`
}

// SQLExecuteResponse is the wire form of an execution result.
type SQLExecuteResponse struct {
	Success         bool     `json:"success"`
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"row_count"`
	Truncated       bool     `json:"truncated"`
	Error           string   `json:"error,omitempty"`
	ExecutionTimeMS float64  `json:"execution_time_ms"`
}

func toSQLResponse(r sqlexec.Result) SQLExecuteResponse {
	if !r.OK() {
		return SQLExecuteResponse{
			Success:         false,
			Columns:         []string{},
			Rows:            [][]any{},
			Error:           r.Failure.Message,
			ExecutionTimeMS: r.Failure.TimeMS,
		}
	}
	return SQLExecuteResponse{
		Success:         true,
		Columns:         r.Data.Columns,
		Rows:            r.Data.Rows,
		RowCount:        r.Data.RowCount,
		Truncated:       r.Data.Truncated,
		ExecutionTimeMS: r.Data.TimeMS,
	}
}

func (g *Gateway) handleSQLExecute(c *okapi.Context) error {
	var req SQLExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Query == "" {
		return c.AbortBadRequest("query is required")
	}

	result, err := g.engine.RunFreeQuery(c.Context(), req.Query, req.Schema)
	if err != nil {
		return g.practiceError(c, err)
	}
	return c.OK(toSQLResponse(result))
}

// practiceError maps engine errors onto HTTP responses.
func (g *Gateway) practiceError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, ErrorBody{Error: err.Error()})
	case errors.Is(err, practice.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorBody{Error: "session not found"})
	case errors.Is(err, practice.ErrSchemaMismatch),
		errors.Is(err, practice.ErrInvalidSchema),
		errors.Is(err, practice.ErrStatementBlocked):
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
	case errors.Is(err, question.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: err.Error()})
	default:
		// Generation validation failures, setup failures, and reference-query
		// inconsistencies are all server-side defects from the caller's view.
		var setupErr *practice.SetupError
		if errors.Is(err, question.ErrInvalid) ||
			errors.Is(err, verify.ErrInconsistentQuestion) ||
			errors.As(err, &setupErr) {
			return c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
		}
		g.logger.Error("unhandled engine error", slog.String("error", err.Error()))
		return c.AbortInternalServerError("internal error")
	}
}

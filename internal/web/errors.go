package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with full technical detail server-side and returned
// to the client as a user-friendly message from core.MapError, formatted for
// the request type (HTMX fragment, JSON, or full HTML page).

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetdiff/internal/core"
	"github.com/JonMunkholm/sheetdiff/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
// Detail carries the parser's message when a file could not be read.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Code    string `json:"code"`
}

// SchemaErrorResponse extends ErrorResponse with the normalized column lists
// of both tables.
type SchemaErrorResponse struct {
	ErrorResponse
	ReferenceColumns []string        `json:"reference_columns"`
	SubsetColumns    []string        `json:"subset_columns"`
	Diff             core.SchemaDiff `json:"diff"`
}

// statusFor picks the HTTP status for a comparison error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case core.IsSchemaMismatch(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyComparisons):
		return http.StatusServiceUnavailable
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrNoFile), core.IsReadError(err), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes a user-friendly response in the format the
// request expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	var sm *core.SchemaMismatchError
	errors.As(err, &sm)
	detail := readErrorDetail(err)

	switch {
	case isHTMX(r):
		renderPartial(w, r, status, errorComponent(userMsg, detail, sm))
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, detail, sm, status)
	default:
		s.renderPage(w, r, status, templates.PageData{Error: errorComponent(userMsg, detail, sm)})
	}
}

// readErrorDetail returns the source name and the parser's message when err
// is a read error, and "" otherwise.
func readErrorDetail(err error) string {
	var re *core.ReadError
	if !errors.As(err, &re) || re.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", re.Source, re.Err)
}

// respondErrorJSON writes a JSON error response. Schema mismatches carry both
// column lists.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, detail string, sm *core.SchemaMismatchError, status int) {
	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Detail:  detail,
		Code:    msg.Code,
	}

	if sm == nil {
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, status, SchemaErrorResponse{
		ErrorResponse:    resp,
		ReferenceColumns: sm.ReferenceColumns,
		SubsetColumns:    sm.SubsetColumns,
		Diff:             sm.Diff(),
	})
}

func errorComponent(msg core.UserMessage, detail string, sm *core.SchemaMismatchError) templ.Component {
	if sm != nil {
		return templates.SchemaMismatch(msg, sm)
	}
	return templates.ErrorAlert(msg.Message, msg.Action, msg.Code, detail)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response. API routes default
// to JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

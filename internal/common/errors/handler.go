// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// GenericErrorMessage is the only failure text external callers ever see for server errors.
const GenericErrorMessage = "Internal Server Error"

// ErrorHandler writes errors to HTTP responses without leaking internals.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteHTTPError logs the full error and writes a generic JSON body.
// Client errors keep their message; server errors collapse to GenericErrorMessage.
func (h *ErrorHandler) WriteHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := Normalize(err)
	if stdErr == nil {
		stdErr = NewInternalError(nil)
	}

	h.logError(r, stdErr)

	status := HTTPStatus(stdErr.Code)
	message := GenericErrorMessage
	if status < http.StatusInternalServerError {
		message = stdErr.Message
		if stdErr.Details != "" {
			message = message + ": " + stdErr.Details
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteHTTPText writes a plain-text failure body with the given message.
func (h *ErrorHandler) WriteHTTPText(w http.ResponseWriter, r *http.Request, err error, message string) {
	stdErr := Normalize(err)
	h.logError(r, stdErr)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(HTTPStatus(stdErr.Code))
	_, _ = w.Write([]byte(message))
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError) {
	fields := stdErr.LogFields()
	fields["message"] = stdErr.Message
	if r != nil {
		fields["method"] = r.Method
		fields["path"] = r.URL.Path
	}
	h.logger.Error("request failed", fields)
}

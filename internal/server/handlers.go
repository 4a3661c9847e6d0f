package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"yashubustudio/semgraph/semgraph"
)

type analyzeRequest struct {
	Text string `json:"text"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Detail string `json:"detail"`
}

// AnalyzeHandler accepts {"text": "..."} and answers with either the graph or
// an {"error": ...} notice; both are 200s. Empty text is a 400.
func AnalyzeHandler(analyzer Analyzer, maxBody int64, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				renderError(w, log, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
				return
			}
			renderError(w, log, "request body must be a JSON object with a text field", http.StatusUnprocessableEntity)
			return
		}

		result, err := analyzer.Analyze(r.Context(), req.Text)
		if err != nil {
			if errors.Is(err, semgraph.ErrInvalidInput) {
				renderError(w, log, "Text is empty", http.StatusBadRequest)
				return
			}
			if errors.Is(err, semgraph.ErrInputTooLarge) {
				renderError(w, log, err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			log.WithField("request_id", middleware.GetReqID(r.Context())).
				WithError(err).Error("analysis failed")
			renderError(w, log, "analysis failed", http.StatusInternalServerError)
			return
		}

		switch res := result.(type) {
		case *semgraph.Graph:
			encodeJSON(w, log, res, http.StatusOK)
		case semgraph.InsufficientInput:
			encodeJSON(w, log, res, http.StatusOK)
		default:
			log.Errorf("unexpected result type %T", result)
			renderError(w, log, "analysis failed", http.StatusInternalServerError)
		}
	}
}

func encodeJSON(w http.ResponseWriter, log logrus.FieldLogger, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("write response")
	}
}

func renderError(w http.ResponseWriter, log logrus.FieldLogger, detail string, status int) {
	encodeJSON(w, log, APIError{Detail: detail}, status)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/askdb/askdb/internal/assistant"
)

const maxAskBodyBytes = 64 << 10

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req askRequest
	// An empty body is a request without a question, not malformed JSON.
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAskBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, failedEnvelope("", "invalid JSON request body: "+err.Error()))
		return
	}
	if deps.Assistant == nil {
		writeJSON(w, http.StatusServiceUnavailable, failedEnvelope(req.Question, assistant.ErrNotConfigured.Error()))
		return
	}

	env := deps.Assistant.Ask(r.Context(), req.Question)
	writeJSON(w, askStatus(env), env)
}

// askStatus maps the failure kind of an envelope to an HTTP status.
func askStatus(env assistant.Envelope) int {
	if !env.Failed() {
		return http.StatusOK
	}
	switch env.Kind {
	case assistant.KindBadRequest, assistant.KindExecutionFailed:
		return http.StatusBadRequest
	case assistant.KindValidationRejected:
		return http.StatusUnprocessableEntity
	case assistant.KindTranslationFailed:
		if errors.Is(env.Err, assistant.ErrNotConfigured) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case assistant.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func failedEnvelope(question, message string) assistant.Envelope {
	return assistant.Envelope{Question: question, Error: &message}
}

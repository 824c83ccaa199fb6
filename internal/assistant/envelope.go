package assistant

import (
	"encoding/json"

	"github.com/askdb/askdb/internal/query"
)

// Stage is where a request was when it finished.
type Stage string

const (
	StageReceived    Stage = "received"
	StageTranslating Stage = "translating"
	StageValidating  Stage = "validating"
	StageExecuting   Stage = "executing"
	StageDone        Stage = "done"
)

// Kind classifies a failed request.
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindTranslationFailed  Kind = "translation_failed"
	KindValidationRejected Kind = "validation_rejected"
	KindExecutionFailed    Kind = "execution_failed"
	KindTimeout            Kind = "timeout"
)

// Envelope is the answer to one question. On failure Query and Explanation
// are nil, Result is empty and Error holds the message.
type Envelope struct {
	Question    string
	Query       *string
	Explanation *string
	Columns     []string
	Result      []query.Row
	Error       *string

	Stage   Stage
	Kind    Kind
	TraceID string
	// Err is the underlying failure, kept for callers that classify it.
	Err error
}

func (e Envelope) Failed() bool {
	return e.Error != nil
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	result := e.Result
	if result == nil {
		result = []query.Row{}
	}
	return json.Marshal(struct {
		Question    string      `json:"question"`
		Query       *string     `json:"query"`
		Explanation *string     `json:"explanation"`
		Result      []query.Row `json:"result"`
		Error       *string     `json:"error"`
	}{
		Question:    e.Question,
		Query:       e.Query,
		Explanation: e.Explanation,
		Result:      result,
		Error:       e.Error,
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire struct {
		Question    string      `json:"question"`
		Query       *string     `json:"query"`
		Explanation *string     `json:"explanation"`
		Result      []query.Row `json:"result"`
		Error       *string     `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Envelope{
		Question:    wire.Question,
		Query:       wire.Query,
		Explanation: wire.Explanation,
		Result:      wire.Result,
		Error:       wire.Error,
	}
	if len(wire.Result) > 0 {
		e.Columns = wire.Result[0].Columns()
	}
	return nil
}

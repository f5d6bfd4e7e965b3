package contract

import "encoding/json"

// ErrorEnvelope is the engine's canonical failure description:
// {success: false, error: {error_code, error_type, message, retryable,
// details, timestamp, request_id}}.
type ErrorEnvelope struct {
	Code      *string
	Type      *string
	Message   *string
	Retryable *bool
	Details   json.RawMessage
	Timestamp *string
	RequestID *string
}

// IsRetryable defaults to false when the engine did not say.
func (e ErrorEnvelope) IsRetryable() bool {
	return e.Retryable != nil && *e.Retryable
}

func (e ErrorEnvelope) hasContent() bool {
	return e.Code != nil || e.Type != nil || e.Message != nil
}

// ParseErrorEnvelope accepts either the full envelope or the inner error
// object on its own.
func ParseErrorEnvelope(raw []byte) (ErrorEnvelope, []Issue) {
	var issues []Issue
	root := newReader("", decodeObject(raw, &issues), &issues)

	if env, present := parseErrorField(root); present {
		return env, issues
	}
	return parseErrorObject(root), issues
}

// parseErrorField reads root.error, which may be an object or a bare message.
func parseErrorField(root reader) (ErrorEnvelope, bool) {
	key, v, ok := root.lookup("error")
	if !ok {
		return ErrorEnvelope{}, false
	}
	switch typed := v.(type) {
	case map[string]any:
		if len(typed) == 0 {
			root.note(key, "empty error object ignored")
			return ErrorEnvelope{}, false
		}
		return parseErrorObject(newReader(root.at(key), typed, root.issues)), true
	case string:
		msg := root.str(key)
		if msg == nil {
			root.note(key, "empty error message ignored")
			return ErrorEnvelope{}, false
		}
		return ErrorEnvelope{Message: msg}, true
	case bool:
		if !typed {
			return ErrorEnvelope{}, false
		}
		return ErrorEnvelope{}, true
	default:
		root.note(key, "expected error object, got "+kindOf(v))
		return ErrorEnvelope{}, true
	}
}

func parseErrorObject(r reader) ErrorEnvelope {
	env := ErrorEnvelope{
		Code:      r.str("error_code", "errorCode", "code"),
		Type:      r.str("error_type", "errorType", "type"),
		Message:   r.str("message", "error_message", "errorMessage"),
		Retryable: r.boolean("retryable"),
		Timestamp: r.str("timestamp"),
		RequestID: r.str("request_id", "requestId"),
	}
	if _, details, ok := r.lookup("details"); ok {
		if encoded, err := json.Marshal(details); err == nil {
			env.Details = encoded
		}
	}
	return env
}

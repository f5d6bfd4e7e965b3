// Package contract parses analysis engine payloads into tolerant value shapes.
//
// Every field is optional. Wrong types, unknown keys and malformed
// sub-structures degrade to absent values and are reported as Issues; no
// input, valid JSON or not, makes a parser panic or return an error.
package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Accepted aliases for the job identifier, in lookup order.
var jobIDAliases = []string{
	"job_id", "jobId",
	"external_job_id", "externalJobId",
	"task_id", "taskId",
	"analysis_id", "analysisId",
	"id",
}

var tenantAliases = []string{"tenant_id", "tenantId", "company_id", "companyId", "organization_id", "organizationId"}

// Envelope is the outer shape of a webhook body or status poll response.
type Envelope struct {
	JobID    *string
	TenantID *string
	Status   *string
	Success  *bool
	// Result is the kind-specific result object, re-encoded; nil when absent.
	Result json.RawMessage
	Error  *ErrorEnvelope
	Issues []Issue
}

// HasError reports whether the engine signalled failure.
func (e Envelope) HasError() bool {
	if e.Error != nil {
		return true
	}
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.statusIs("failed")
}

// reportsSuccess is true when the engine explicitly claims success and
// delivered a result alongside.
func (e Envelope) reportsSuccess() bool {
	if len(e.Result) == 0 {
		return false
	}
	return (e.Success != nil && *e.Success) || e.statusIs("completed")
}

func (e Envelope) statusIs(want string) bool {
	return e.Status != nil && strings.EqualFold(strings.TrimSpace(*e.Status), want)
}

// ParseEnvelope never fails; see the package documentation.
func ParseEnvelope(raw []byte) Envelope {
	var env Envelope
	root := newReader("", decodeObject(raw, &env.Issues), &env.Issues)

	env.JobID = identifier(root, jobIDAliases...)
	env.TenantID = identifier(root, tenantAliases...)
	env.Status = root.str("status", "state")
	env.Success = root.boolean("success")

	if result, ok := root.object("result", "data"); ok {
		if encoded, err := json.Marshal(result.m); err == nil {
			env.Result = encoded
		}
	}

	if errEnv, present := parseErrorField(root); present {
		env.Error = &errEnv
	}
	// A contentless error next to an explicit success with a result is
	// drift, not a failure.
	if env.Error != nil && !env.Error.hasContent() && env.reportsSuccess() {
		root.note("error", "error without code, type or message ignored on successful result")
		env.Error = nil
	}

	return env
}

// identifier reads an id given as a non-empty string or an integral number.
func identifier(r reader, keys ...string) *string {
	key, v, ok := r.lookup(keys...)
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case string:
		return r.str(key)
	case json.Number:
		n, ok := parseInteger(typed.String())
		if !ok {
			r.note(key, "expected integer identifier")
			return nil
		}
		s := fmt.Sprintf("%d", n)
		return &s
	default:
		r.note(key, "expected string or integer identifier, got "+kindOf(typed))
		return nil
	}
}

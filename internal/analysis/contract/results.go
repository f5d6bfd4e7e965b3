package contract

import (
	"fmt"
	"time"
)

// Qualification is what the engine learned about the prospect.
type Qualification struct {
	Budget        *string
	Timeline      *string
	DecisionMaker *bool
	ServiceType   *string
	Needs         []string
}

// IsEmpty reports whether no qualification field was present.
func (q Qualification) IsEmpty() bool {
	return q.Budget == nil && q.Timeline == nil && q.DecisionMaker == nil &&
		q.ServiceType == nil && len(q.Needs) == 0
}

// Objection is a concern raised by the prospect.
type Objection struct {
	Type *string
	Text string
}

// Action is a follow-up the engine believes is still open.
type Action struct {
	Description string
	Type        *string
	Assignee    *string
	Due         *time.Time
	DueRaw      *string
}

// Opportunity is something the salesperson could have done better.
type Opportunity struct {
	Type        *string
	Description string
	Severity    *string
}

// CallAnalysis is the result shape for analysed phone calls.
type CallAnalysis struct {
	Outcome             *string
	Summary             *string
	Sentiment           *string
	Qualification       Qualification
	Objections          []Objection
	PendingActions      []Action
	MissedOpportunities []Opportunity
	DealSize            *float64
	Issues              []Issue
}

// VisitAnalysis is the result shape for analysed in-person visits.
type VisitAnalysis struct {
	Outcome             *string
	Summary             *string
	Objections          []Objection
	PendingActions      []Action
	MissedOpportunities []Opportunity
	DealSize            *float64
	Issues              []Issue
}

// Segment is one speaker turn.
type Segment struct {
	Speaker *string
	StartMs *int64
	EndMs   *int64
	Text    string
}

// Segmentation is the diarization result for a recording.
type Segmentation struct {
	Language *string
	Speakers *int64
	Segments []Segment
	Issues   []Issue
}

// ParseCallAnalysis never fails; see the package documentation.
func ParseCallAnalysis(raw []byte) CallAnalysis {
	var out CallAnalysis
	r := newReader("result", decodeObject(raw, &out.Issues), &out.Issues)

	out.Outcome = r.str("outcome", "call_outcome", "callOutcome")
	out.Summary = r.str("summary")
	out.Sentiment = r.str("sentiment")
	if q, ok := r.object("qualification", "qualification_data", "qualificationData"); ok {
		out.Qualification = parseQualification(q)
	}
	out.Objections = parseObjections(r)
	out.PendingActions = parseActions(r)
	out.MissedOpportunities = parseOpportunities(r)
	out.DealSize = r.number("deal_size", "dealSize", "deal_value", "dealValue")
	return out
}

// ParseVisitAnalysis never fails; see the package documentation.
func ParseVisitAnalysis(raw []byte) VisitAnalysis {
	var out VisitAnalysis
	r := newReader("result", decodeObject(raw, &out.Issues), &out.Issues)

	out.Outcome = r.str("outcome", "visit_outcome", "visitOutcome")
	out.Summary = r.str("summary")
	out.Objections = parseObjections(r)
	out.PendingActions = parseActions(r)
	out.MissedOpportunities = parseOpportunities(r)
	out.DealSize = r.number("deal_size", "dealSize", "deal_value", "dealValue")
	return out
}

// ParseSegmentation never fails; see the package documentation.
func ParseSegmentation(raw []byte) Segmentation {
	var out Segmentation
	r := newReader("result", decodeObject(raw, &out.Issues), &out.Issues)

	out.Language = r.str("language", "lang")
	out.Speakers = r.integer("speakers", "speaker_count", "speakerCount")

	key, items := r.list("segments", "utterances")
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			r.note(fmt.Sprintf("%s[%d]", key, i), "expected object, got "+kindOf(item))
			continue
		}
		seg := newReader(fmt.Sprintf("%s.%s[%d]", r.path, key, i), obj, r.issues)
		text := seg.str("text", "transcript")
		if text == nil {
			continue
		}
		out.Segments = append(out.Segments, Segment{
			Speaker: seg.str("speaker", "speaker_label", "speakerLabel"),
			StartMs: seg.integer("start_ms", "startMs", "start"),
			EndMs:   seg.integer("end_ms", "endMs", "end"),
			Text:    *text,
		})
	}
	return out
}

func parseQualification(r reader) Qualification {
	return Qualification{
		Budget:        r.str("budget"),
		Timeline:      r.str("timeline", "timeframe"),
		DecisionMaker: r.boolean("decision_maker", "decisionMaker", "is_decision_maker"),
		ServiceType:   r.str("service_type", "serviceType", "service"),
		Needs:         r.strings("needs", "requirements"),
	}
}

// eachItem visits list entries that are either plain strings or objects.
// A plain string becomes an object with only the given text key.
func eachItem(r reader, textKey string, keys []string, fn func(item reader)) {
	key, items := r.list(keys...)
	for i, item := range items {
		path := fmt.Sprintf("%s.%s[%d]", r.path, key, i)
		switch typed := item.(type) {
		case string:
			fn(newReader(path, map[string]any{textKey: typed}, r.issues))
		case map[string]any:
			fn(newReader(path, typed, r.issues))
		default:
			*r.issues = append(*r.issues, Issue{Path: path, Reason: "expected string or object, got " + kindOf(item)})
		}
	}
}

func parseObjections(r reader) []Objection {
	var out []Objection
	eachItem(r, "text", []string{"objections"}, func(item reader) {
		text := item.str("text", "objection", "description", "quote")
		objType := item.str("type", "category")
		if text == nil && objType == nil {
			return
		}
		o := Objection{Type: objType}
		if text != nil {
			o.Text = *text
		}
		out = append(out, o)
	})
	return out
}

func parseActions(r reader) []Action {
	var out []Action
	keys := []string{"pending_actions", "pendingActions", "action_items", "actionItems", "next_steps", "nextSteps"}
	eachItem(r, "description", keys, func(item reader) {
		desc := item.str("description", "text", "action", "title")
		if desc == nil {
			return
		}
		due, dueRaw := item.timestamp("due_date", "dueDate", "due", "due_at", "dueAt")
		out = append(out, Action{
			Description: *desc,
			Type:        item.str("type", "action_type", "actionType"),
			Assignee:    item.str("assignee", "owner"),
			Due:         due,
			DueRaw:      dueRaw,
		})
	})
	return out
}

func parseOpportunities(r reader) []Opportunity {
	var out []Opportunity
	keys := []string{"missed_opportunities", "missedOpportunities", "opportunities"}
	eachItem(r, "description", keys, func(item reader) {
		desc := item.str("description", "text", "details")
		oppType := item.str("type", "opportunity_type", "opportunityType", "category")
		if desc == nil && oppType == nil {
			return
		}
		o := Opportunity{Type: oppType, Severity: item.str("severity", "priority")}
		if desc != nil {
			o.Description = *desc
		}
		out = append(out, o)
	})
	return out
}

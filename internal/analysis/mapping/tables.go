// Package mapping translates engine vocabulary into internal enums.
//
// A Tables value is immutable once built. Every lookup is total: unknown
// input yields a declared default instead of an error, and the same input
// always yields the same output.
package mapping

import (
	"sort"
	"strings"

	"portal_analysis_backend/internal/analysis/domain"
)

// GenericSignalType is used for opportunity types the tables do not know.
const GenericSignalType = "opportunity"

// ObjectionOther is used for objections no keyword matched.
const ObjectionOther = "other"

// ActionPattern recognises a follow-up action by keyword.
type ActionPattern struct {
	Type     string
	Keywords []string
	// Assignee overrides the origin default when set.
	Assignee domain.Assignee
}

// ActionMatch is the result of matching free text against the patterns.
// Type is empty when Known is false.
type ActionMatch struct {
	Type     string
	Known    bool
	Assignee domain.Assignee
}

// SignalMapping is the key signal an opportunity type becomes.
type SignalMapping struct {
	Type     string
	Severity domain.Severity
}

// Tables holds one immutable vocabulary.
type Tables struct {
	leadStatus  map[string]domain.LeadStatus
	visit       map[string]domain.AppointmentOutcome
	actions     []ActionPattern
	signals     map[string]SignalMapping
	objections  map[string][]string
	objectionBy []string
}

// LeadStatus maps a call outcome. Unknown outcomes return false and must be
// treated as a no-op.
func (t *Tables) LeadStatus(outcome string) (domain.LeadStatus, bool) {
	status, ok := t.leadStatus[normalizeKey(outcome)]
	return status, ok
}

// AppointmentOutcome maps a visit outcome. Unknown outcomes map to PENDING.
func (t *Tables) AppointmentOutcome(outcome string) domain.AppointmentOutcome {
	if mapped, ok := t.visit[normalizeKey(outcome)]; ok {
		return mapped
	}
	return domain.OutcomePending
}

// MatchAction matches free text against the action patterns in declaration
// order. Unmatched text is routed to the origin's default assignee.
func (t *Tables) MatchAction(text string, origin domain.Origin) ActionMatch {
	haystack := normalizeText(text)
	for _, p := range t.actions {
		for _, kw := range p.Keywords {
			if kw != "" && strings.Contains(haystack, kw) {
				return t.matched(p, origin)
			}
		}
	}
	return ActionMatch{Assignee: domain.DefaultAssignee(origin)}
}

// ActionType resolves an explicit type supplied by the engine.
func (t *Tables) ActionType(actionType string, origin domain.Origin) (ActionMatch, bool) {
	key := normalizeKey(actionType)
	for _, p := range t.actions {
		if p.Type == key {
			return t.matched(p, origin), true
		}
	}
	return ActionMatch{}, false
}

func (t *Tables) matched(p ActionPattern, origin domain.Origin) ActionMatch {
	assignee := p.Assignee
	if assignee == "" {
		assignee = domain.DefaultAssignee(origin)
	}
	return ActionMatch{Type: p.Type, Known: true, Assignee: assignee}
}

// Signal maps an opportunity type. Unknown types become a generic
// opportunity at medium severity rather than being dropped.
func (t *Tables) Signal(opportunityType string) SignalMapping {
	if m, ok := t.signals[normalizeKey(opportunityType)]; ok {
		return m
	}
	return SignalMapping{Type: GenericSignalType, Severity: domain.SeverityMedium}
}

// ObjectionCategory classifies objection text by keyword.
func (t *Tables) ObjectionCategory(text string) string {
	haystack := normalizeText(text)
	for _, category := range t.objectionBy {
		for _, kw := range t.objections[category] {
			if strings.Contains(haystack, kw) {
				return category
			}
		}
	}
	return ObjectionOther
}

// ActionPatterns returns a copy of the configured patterns.
func (t *Tables) ActionPatterns() []ActionPattern {
	out := make([]ActionPattern, len(t.actions))
	copy(out, t.actions)
	return out
}

func (t *Tables) clone() *Tables {
	c := &Tables{
		leadStatus:  make(map[string]domain.LeadStatus, len(t.leadStatus)),
		visit:       make(map[string]domain.AppointmentOutcome, len(t.visit)),
		actions:     make([]ActionPattern, len(t.actions)),
		signals:     make(map[string]SignalMapping, len(t.signals)),
		objections:  make(map[string][]string, len(t.objections)),
		objectionBy: append([]string(nil), t.objectionBy...),
	}
	for k, v := range t.leadStatus {
		c.leadStatus[k] = v
	}
	for k, v := range t.visit {
		c.visit[k] = v
	}
	copy(c.actions, t.actions)
	for k, v := range t.signals {
		c.signals[k] = v
	}
	for k, v := range t.objections {
		c.objections[k] = append([]string(nil), v...)
	}
	return c
}

func (t *Tables) reindexObjections() {
	t.objectionBy = t.objectionBy[:0]
	for category := range t.objections {
		t.objectionBy = append(t.objectionBy, category)
	}
	sort.Strings(t.objectionBy)
}

// normalizeKey folds enum-like strings: "Qualified And-Booked" and
// "qualified_and_booked" are the same key.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, s)
}

// normalizeText lowercases and collapses whitespace for keyword search.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

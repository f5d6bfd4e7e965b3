package adapter

import (
	"strings"

	"portal_analysis_backend/internal/analysis/contract"
	"portal_analysis_backend/internal/analysis/domain"
	"portal_analysis_backend/internal/analysis/mapping"
)

// UnknownFailureCode is used when a failed job carries no error code.
const UnknownFailureCode = "unknown"

// Adapter composes contract parsing with the current mapping tables.
// It holds no per-call state.
type Adapter struct {
	tables mapping.Source
}

// New creates an adapter reading vocabulary from src.
func New(src mapping.Source) *Adapter {
	return &Adapter{tables: src}
}

// Adapt dispatches on the envelope: engine failures go to the error adapter,
// everything else to the adapter for the job's subject type.
func (a *Adapter) Adapt(subject domain.SubjectType, env contract.Envelope) NormalizedResult {
	if env.HasError() {
		return a.Error(env)
	}
	switch subject {
	case domain.SubjectVisit:
		return a.Visit(env.Result)
	case domain.SubjectSegmentation:
		return a.Segmentation(env.Result)
	default:
		return a.Call(env.Result)
	}
}

// Call adapts a call analysis result.
func (a *Adapter) Call(raw []byte) NormalizedResult {
	t := a.tables.Current()
	c := contract.ParseCallAnalysis(raw)

	out := NormalizedResult{
		Kind:                KindCallAnalysis,
		Qualification:       qualification(c.Qualification),
		Objections:          objections(t, c.Objections),
		PendingActions:      actions(t, c.PendingActions, domain.OriginCall),
		MissedOpportunities: opportunities(t, c.MissedOpportunities),
		DealSize:            c.DealSize,
		Summary:             c.Summary,
		Sentiment:           c.Sentiment,
		Issues:              c.Issues,
	}
	if c.Outcome != nil {
		out.Outcome = &LeadOutcome{Raw: *c.Outcome}
		if status, ok := t.LeadStatus(*c.Outcome); ok {
			out.Outcome.Status = &status
		}
	}
	return out
}

// Visit adapts a visit analysis result.
func (a *Adapter) Visit(raw []byte) NormalizedResult {
	t := a.tables.Current()
	v := contract.ParseVisitAnalysis(raw)

	out := NormalizedResult{
		Kind:                KindVisitAnalysis,
		Objections:          objections(t, v.Objections),
		PendingActions:      actions(t, v.PendingActions, domain.OriginVisit),
		MissedOpportunities: opportunities(t, v.MissedOpportunities),
		DealSize:            v.DealSize,
		Summary:             v.Summary,
		Issues:              v.Issues,
	}
	if v.Outcome != nil {
		mapped := t.AppointmentOutcome(*v.Outcome)
		out.AppointmentOutcome = &VisitOutcome{
			Raw:     *v.Outcome,
			Outcome: mapped,
			Known:   mapped != domain.OutcomePending || strings.EqualFold(strings.TrimSpace(*v.Outcome), "pending"),
		}
	}
	return out
}

// Segmentation adapts a diarization result.
func (a *Adapter) Segmentation(raw []byte) NormalizedResult {
	s := contract.ParseSegmentation(raw)

	stats := &SegmentationStats{Language: s.Language, Segments: len(s.Segments)}
	speakers := make(map[string]struct{})
	for _, seg := range s.Segments {
		if seg.Speaker != nil {
			speakers[*seg.Speaker] = struct{}{}
		}
		if seg.EndMs != nil && *seg.EndMs > stats.DurationMs {
			stats.DurationMs = *seg.EndMs
		}
	}
	stats.Speakers = len(speakers)
	if s.Speakers != nil && *s.Speakers > 0 {
		stats.Speakers = int(*s.Speakers)
	}

	return NormalizedResult{Kind: KindSegmentation, Segmentation: stats, Issues: s.Issues}
}

// Error adapts an engine-reported failure.
func (a *Adapter) Error(env contract.Envelope) NormalizedResult {
	f := &Failure{Code: UnknownFailureCode}
	if e := env.Error; e != nil {
		f.Code = deref(e.Code, UnknownFailureCode)
		f.Type = deref(e.Type, "")
		f.Message = deref(e.Message, "")
		f.Retryable = e.IsRetryable()
		f.RequestID = deref(e.RequestID, "")
	}
	return NormalizedResult{Kind: KindError, Failure: f, Issues: env.Issues}
}

func qualification(q contract.Qualification) *Qualification {
	if q.IsEmpty() {
		return nil
	}
	return &Qualification{
		Budget:        q.Budget,
		Timeline:      q.Timeline,
		DecisionMaker: q.DecisionMaker,
		ServiceType:   q.ServiceType,
		Needs:         q.Needs,
	}
}

func objections(t *mapping.Tables, in []contract.Objection) []Objection {
	out := make([]Objection, 0, len(in))
	for _, o := range in {
		text := o.Text
		if text == "" && o.Type != nil {
			text = *o.Type
		}
		out = append(out, Objection{Raw: o.Text, RawType: o.Type, Category: t.ObjectionCategory(text)})
	}
	return nilIfEmpty(out)
}

func actions(t *mapping.Tables, in []contract.Action, origin domain.Origin) []PendingAction {
	out := make([]PendingAction, 0, len(in))
	for _, a := range in {
		match := t.MatchAction(a.Description, origin)
		if a.Type != nil {
			if explicit, ok := t.ActionType(*a.Type, origin); ok {
				match = explicit
			}
		}
		pa := PendingAction{
			Raw:      a.Description,
			Known:    match.Known,
			Assignee: match.Assignee,
			DueAt:    a.Due,
			DueRaw:   a.DueRaw,
		}
		if match.Known {
			matched := match.Type
			pa.MatchedType = &matched
		}
		// An explicit engine assignee overrides the pattern routing.
		if a.Assignee != nil {
			pa.RawAssignee = a.Assignee
			if assignee, ok := domain.ParseAssignee(*a.Assignee); ok {
				pa.Assignee = assignee
			}
		}
		out = append(out, pa)
	}
	return nilIfEmpty(out)
}

func opportunities(t *mapping.Tables, in []contract.Opportunity) []MissedOpportunity {
	out := make([]MissedOpportunity, 0, len(in))
	for _, o := range in {
		lookup := ""
		if o.Type != nil {
			lookup = *o.Type
		}
		sig := t.Signal(lookup)
		if o.Severity != nil {
			if sev, ok := domain.ParseSeverity(*o.Severity); ok {
				sig.Severity = sev
			}
		}
		out = append(out, MissedOpportunity{
			Raw:        o.Description,
			RawType:    o.Type,
			SignalType: sig.Type,
			Severity:   sig.Severity,
		})
	}
	return nilIfEmpty(out)
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

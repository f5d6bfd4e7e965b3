package mapping

import "portal_analysis_backend/internal/analysis/domain"

// Default returns the built-in vocabulary.
func Default() *Tables {
	t := &Tables{
		leadStatus: map[string]domain.LeadStatus{
			"qualified_and_booked":          domain.LeadStatusQualifiedBooked,
			"qualified_booked":              domain.LeadStatusQualifiedBooked,
			"booked":                        domain.LeadStatusQualifiedBooked,
			"qualified_not_booked":          domain.LeadStatusQualifiedUnbooked,
			"qualified_and_not_booked":      domain.LeadStatusQualifiedUnbooked,
			"qualified_unbooked":            domain.LeadStatusQualifiedUnbooked,
			"qualified_service_not_offered": domain.LeadStatusQualifiedServiceNotOffered,
			"service_not_offered":           domain.LeadStatusQualifiedServiceNotOffered,
			"not_qualified":                 domain.LeadStatusClosedLost,
			"unqualified":                   domain.LeadStatusClosedLost,
			"disqualified":                  domain.LeadStatusClosedLost,
			"closed_won":                    domain.LeadStatusClosedWon,
			"closed_lost":                   domain.LeadStatusClosedLost,
		},
		visit: map[string]domain.AppointmentOutcome{
			"pending":          domain.OutcomePending,
			"won":              domain.OutcomeWon,
			"sold":             domain.OutcomeWon,
			"closed_won":       domain.OutcomeWon,
			"lost":             domain.OutcomeLost,
			"not_sold":         domain.OutcomeLost,
			"closed_lost":      domain.OutcomeLost,
			"no_show":          domain.OutcomeNoShow,
			"noshow":           domain.OutcomeNoShow,
			"customer_no_show": domain.OutcomeNoShow,
			"rescheduled":      domain.OutcomeRescheduled,
			"reschedule":       domain.OutcomeRescheduled,
		},
		actions: []ActionPattern{
			{Type: "send_quote", Keywords: []string{"send quote", "send a quote", "send the quote", "send estimate", "send an estimate", "proposal"}, Assignee: domain.AssigneeRep},
			{Type: "schedule_visit", Keywords: []string{"schedule visit", "schedule a visit", "book appointment", "book an appointment", "schedule appointment", "site visit"}, Assignee: domain.AssigneeCSR},
			{Type: "callback", Keywords: []string{"call back", "callback", "return call", "call the customer"}},
			{Type: "send_information", Keywords: []string{"send info", "send information", "brochure", "email details"}, Assignee: domain.AssigneeCSR},
			{Type: "financing", Keywords: []string{"financing", "finance options", "payment plan"}, Assignee: domain.AssigneeRep},
		},
		signals: map[string]SignalMapping{
			"upsell":                    {Type: "upsell", Severity: domain.SeverityMedium},
			"upsell_maintenance":        {Type: "upsell", Severity: domain.SeverityMedium},
			"maintenance_plan":          {Type: "upsell", Severity: domain.SeverityMedium},
			"cross_sell":                {Type: "cross_sell", Severity: domain.SeverityMedium},
			"financing":                 {Type: "financing", Severity: domain.SeverityHigh},
			"financing_not_offered":     {Type: "financing", Severity: domain.SeverityHigh},
			"urgency":                   {Type: "urgency", Severity: domain.SeverityHigh},
			"missed_urgency":            {Type: "urgency", Severity: domain.SeverityHigh},
			"competitor":                {Type: "competitor", Severity: domain.SeverityHigh},
			"competitor_mention":        {Type: "competitor", Severity: domain.SeverityHigh},
			"referral":                  {Type: "referral", Severity: domain.SeverityLow},
			"price_objection_unhandled": {Type: "objection_handling", Severity: domain.SeverityMedium},
		},
		objections: map[string][]string{
			"price":      {"price", "expensive", "cost", "afford", "budget"},
			"timing":     {"timing", "not now", "later", "next year", "spring"},
			"authority":  {"spouse", "partner", "wife", "husband", "decide", "decision"},
			"competitor": {"competitor", "other quote", "another company"},
			"trust":      {"trust", "reviews", "not sure about"},
		},
	}
	t.reindexObjections()
	return t
}

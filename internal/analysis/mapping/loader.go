package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"portal_analysis_backend/internal/analysis/domain"

	"gopkg.in/yaml.v3"
)

// File is the YAML shape of a vocabulary override file. Entries are merged
// over the built-in defaults; an action pattern with an existing type
// replaces that pattern.
type File struct {
	LeadStatus         map[string]string     `yaml:"lead_status"`
	AppointmentOutcome map[string]string     `yaml:"appointment_outcome"`
	Actions            []FileAction          `yaml:"actions"`
	Signals            map[string]FileSignal `yaml:"signals"`
	Objections         map[string][]string   `yaml:"objections"`
}

// FileAction is one action pattern entry.
type FileAction struct {
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
	Assignee string   `yaml:"assignee"`
}

// FileSignal is one opportunity type entry.
type FileSignal struct {
	Type     string `yaml:"type"`
	Severity string `yaml:"severity"`
}

// LoadFile reads and validates a vocabulary file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	return Parse(data)
}

// Parse builds tables from YAML merged over Default. Unknown target values
// are rejected so a typo cannot silently turn into a no-op mapping.
func Parse(data []byte) (*Tables, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode mapping file: %w", err)
	}
	return f.apply(Default())
}

func (f File) apply(base *Tables) (*Tables, error) {
	t := base.clone()
	var errs []error

	for outcome, status := range f.LeadStatus {
		s := domain.LeadStatus(status)
		if !domain.IsKnownLeadStatus(s) {
			errs = append(errs, fmt.Errorf("lead_status.%s: unknown lead status %q", outcome, status))
			continue
		}
		t.leadStatus[normalizeKey(outcome)] = s
	}

	for outcome, mapped := range f.AppointmentOutcome {
		o := domain.AppointmentOutcome(mapped)
		if !domain.IsKnownAppointmentOutcome(o) {
			errs = append(errs, fmt.Errorf("appointment_outcome.%s: unknown outcome %q", outcome, mapped))
			continue
		}
		t.visit[normalizeKey(outcome)] = o
	}

	for i, a := range f.Actions {
		pattern, err := a.pattern()
		if err != nil {
			errs = append(errs, fmt.Errorf("actions[%d]: %w", i, err))
			continue
		}
		t.upsertAction(pattern)
	}

	for oppType, sig := range f.Signals {
		severity, ok := domain.ParseSeverity(sig.Severity)
		if !ok {
			errs = append(errs, fmt.Errorf("signals.%s: unknown severity %q", oppType, sig.Severity))
			continue
		}
		if normalizeKey(sig.Type) == "" {
			errs = append(errs, fmt.Errorf("signals.%s: type is required", oppType))
			continue
		}
		t.signals[normalizeKey(oppType)] = SignalMapping{Type: normalizeKey(sig.Type), Severity: severity}
	}

	for category, keywords := range f.Objections {
		normalized := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			if kw = normalizeText(kw); kw != "" {
				normalized = append(normalized, kw)
			}
		}
		t.objections[normalizeKey(category)] = normalized
	}
	t.reindexObjections()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func (a FileAction) pattern() (ActionPattern, error) {
	p := ActionPattern{Type: normalizeKey(a.Type)}
	if p.Type == "" {
		return p, errors.New("type is required")
	}
	for _, kw := range a.Keywords {
		if kw = normalizeText(kw); kw != "" {
			p.Keywords = append(p.Keywords, kw)
		}
	}
	if len(p.Keywords) == 0 {
		return p, errors.New("at least one keyword is required")
	}
	switch domain.Assignee(a.Assignee) {
	case "", domain.AssigneeCSR, domain.AssigneeRep:
		p.Assignee = domain.Assignee(a.Assignee)
	default:
		return p, fmt.Errorf("unknown assignee %q", a.Assignee)
	}
	return p, nil
}

func (t *Tables) upsertAction(p ActionPattern) {
	for i := range t.actions {
		if t.actions[i].Type == p.Type {
			t.actions[i] = p
			return
		}
	}
	t.actions = append(t.actions, p)
}

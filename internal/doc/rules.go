package doc

import "fmt"

// OverrideMode is a project-level auto-publish override for one document type.
type OverrideMode string

const (
	// OverrideManual disables auto-publish for the type.
	OverrideManual OverrideMode = "manual"
	// OverrideImmediate publishes the type as soon as it is approved.
	OverrideImmediate OverrideMode = "immediate"
)

// Valid reports whether m is a known override mode.
func (m OverrideMode) Valid() bool {
	return m == OverrideManual || m == OverrideImmediate
}

// Policy is the project context of the auto-publish rules and review gate.
// The zero value applies the catalog defaults.
type Policy struct {
	Project      string
	AutoPublish  map[DocumentType]OverrideMode
	MinReviewers map[DocumentType]int
}

// MinReviewersFor returns the consensus threshold for t, honouring overrides.
func (p Policy) MinReviewersFor(t DocumentType) int {
	if n, ok := p.MinReviewers[t]; ok {
		return n
	}
	return MinReviewers(t)
}

// Validate checks that the policy only names known types and sane values.
func (p Policy) Validate() error {
	for t, m := range p.AutoPublish {
		if !t.Valid() {
			return fmt.Errorf("auto_publish: unknown document type %q", t)
		}
		if !m.Valid() {
			return fmt.Errorf("auto_publish: %s: unknown mode %q", t, m)
		}
	}
	for t, n := range p.MinReviewers {
		if !t.Valid() {
			return fmt.Errorf("min_reviewers: unknown document type %q", t)
		}
		if n < 0 {
			return fmt.Errorf("min_reviewers: %s: negative value %d", t, n)
		}
	}
	return nil
}

// Rule names recorded in autoPublishRule and publish audit details.
const (
	RuleContextImmediate = "context:immediate"
	RuleContextManual    = "context:manual"
	RuleType             = "type"
	RulePhase            = "phase"
	RuleDefault          = "default"
)

// RuleInput is everything the auto-publish decision depends on.
type RuleInput struct {
	DocumentType  DocumentType
	Visibility    Visibility
	WorkItemPhase Phase // "" when the owner is not a work item or has no phase
	Policy        Policy
}

// RuleDecision is the outcome of DecideAutoPublish.
type RuleDecision struct {
	Publish bool
	Rule    string // which rule matched
	Reason  string
}

// Eligible reports whether some rule could publish the type at a later point,
// so the record should carry autoPublish=true while it waits.
func (d RuleDecision) Eligible() bool {
	return d.Publish || d.Rule == RulePhase
}

// DecideAutoPublish decides whether an APPROVED document should publish now.
// It is a pure lookup. A project override wins over the type and phase
// rules; a non-public document is never auto-published.
func DecideAutoPublish(in RuleInput) RuleDecision {
	spec, known := SpecFor(in.DocumentType)

	if mode, ok := in.Policy.AutoPublish[in.DocumentType]; ok {
		switch mode {
		case OverrideManual:
			return RuleDecision{Rule: RuleContextManual, Reason: "project policy requires manual publish"}
		case OverrideImmediate:
			if in.Visibility != VisibilityPublic {
				return RuleDecision{Rule: RuleContextImmediate, Reason: fmt.Sprintf("visibility is %s", in.Visibility)}
			}
			return RuleDecision{Publish: true, Rule: RuleContextImmediate, Reason: "project policy publishes on approval"}
		}
	}
	if !known {
		return RuleDecision{Rule: RuleDefault, Reason: "unknown document type"}
	}

	switch spec.AutoPublish {
	case AutoPublishAlways:
		if in.Visibility != VisibilityPublic {
			return RuleDecision{Rule: RuleType, Reason: fmt.Sprintf("visibility is %s", in.Visibility)}
		}
		return RuleDecision{Publish: true, Rule: RuleType, Reason: fmt.Sprintf("%s publishes on approval", in.DocumentType)}
	case AutoPublishPhase:
		if in.WorkItemPhase != spec.TriggerPhase {
			return RuleDecision{Rule: RulePhase, Reason: fmt.Sprintf("waiting for phase %s, work item is in %q", spec.TriggerPhase, in.WorkItemPhase)}
		}
		if in.Visibility != VisibilityPublic {
			return RuleDecision{Rule: RulePhase, Reason: fmt.Sprintf("visibility is %s", in.Visibility)}
		}
		return RuleDecision{Publish: true, Rule: RulePhase, Reason: fmt.Sprintf("work item reached phase %s", spec.TriggerPhase)}
	}
	return RuleDecision{Rule: RuleDefault, Reason: "no auto-publish rule"}
}

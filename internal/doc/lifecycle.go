package doc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Trigger is a caller-initiated lifecycle request.
type Trigger string

const (
	TriggerSubmitReview Trigger = "submit-review"
	TriggerApprove      Trigger = "approve"
	TriggerReject       Trigger = "reject"
	TriggerPublish      Trigger = "publish"
	TriggerUnpublish    Trigger = "unpublish"
	TriggerArchive      Trigger = "archive"
	TriggerUnarchive    Trigger = "unarchive"
)

// AllTriggers lists every caller-initiated trigger.
var AllTriggers = []Trigger{
	TriggerSubmitReview,
	TriggerApprove,
	TriggerReject,
	TriggerPublish,
	TriggerUnpublish,
	TriggerArchive,
	TriggerUnarchive,
}

// TransitionRequest asks the engine to move a document.
type TransitionRequest struct {
	Trigger Trigger
	Actor   string // for approve and reject, the reviewer

	Reviewers  []string // submit-review: reviewers to assign
	Reason     string
	Comment    string
	HasContent bool // submit-review precondition
	Force      bool // publish: refresh an already published copy
	Details    map[string]string
}

// Transition is the outcome of a successful Apply: the next record and the
// audit entries that must be committed with it.
type Transition struct {
	From     Stage
	Document *Document
	Entries  []*AuditEntry
}

// Changed reports whether the stage moved.
func (t *Transition) Changed() bool { return t.From != t.Document.Stage }

// LifecycleEngine validates transitions and builds their audit entries. It
// performs no I/O; the caller commits Transition.Document and
// Transition.Entries in one write.
type LifecycleEngine struct {
	policy                 Policy
	requireUnpublishReason bool
	clock                  Clock
	ids                    IDGenerator
}

// NewLifecycleEngine creates an engine. ids generates audit entry IDs.
func NewLifecycleEngine(policy Policy, requireUnpublishReason bool, clock Clock, ids IDGenerator) *LifecycleEngine {
	return &LifecycleEngine{
		policy:                 policy,
		requireUnpublishReason: requireUnpublishReason,
		clock:                  clock,
		ids:                    ids,
	}
}

// Apply validates req against the transition table and returns the next state.
// On error the input document is untouched and nothing should be written.
func (e *LifecycleEngine) Apply(current *Document, req TransitionRequest) (*Transition, error) {
	switch req.Trigger {
	case TriggerSubmitReview:
		return e.submitReview(current, req)
	case TriggerApprove:
		return e.approve(current, req)
	case TriggerReject:
		return e.reject(current, req)
	case TriggerPublish:
		return e.publish(current, req)
	case TriggerUnpublish:
		return e.unpublish(current, req)
	case TriggerArchive:
		return e.archive(current, req)
	case TriggerUnarchive:
		return e.unarchive(current, req)
	default:
		return nil, fmt.Errorf("unknown trigger %q", req.Trigger)
	}
}

// Record builds an audit entry for an event that does not move the stage.
func (e *LifecycleEngine) Record(d *Document, action Action, actor string, details map[string]string, comment string) *AuditEntry {
	return e.entry(d, action, actor, d.Stage, d.Stage, details, comment)
}

func (e *LifecycleEngine) submitReview(d *Document, req TransitionRequest) (*Transition, error) {
	if d.Stage != StageDraft {
		return nil, &InvalidTransition{From: d.Stage, To: StageReview}
	}
	if !req.HasContent {
		return nil, &PreconditionFailed{From: d.Stage, To: StageReview, Reason: "document has no content"}
	}

	now := e.clock.Now()
	next := d.Clone()
	next.UpdatedAt = now
	tr := &Transition{From: d.Stage, Document: next}

	reviewers := dedupe(req.Reviewers)
	if len(reviewers) == 0 {
		reviewers = reviewerIDs(d.Reviewers)
	}

	if e.policy.MinReviewersFor(d.DocumentType) == 0 && len(reviewers) == 0 {
		next.Stage = StageApproved
		next.Reviewers = nil
		tr.Entries = append(tr.Entries, e.entry(next, ActionSubmitReview, req.Actor, d.Stage, next.Stage,
			merge(req.Details, map[string]string{"review": "bypassed"}), req.Comment))
		return tr, nil
	}

	next.Stage = StageReview
	next.ReviewStartedAt = now
	next.Reviewers = make([]ReviewerAssignment, 0, len(reviewers))
	for _, r := range reviewers {
		next.Reviewers = append(next.Reviewers, ReviewerAssignment{ReviewerID: r, Decision: DecisionPending})
	}
	details := map[string]string{"required": strconv.Itoa(e.policy.MinReviewersFor(d.DocumentType))}
	if len(reviewers) > 0 {
		details["reviewers"] = strings.Join(reviewers, ",")
	}
	tr.Entries = append(tr.Entries, e.entry(next, ActionSubmitReview, req.Actor, d.Stage, next.Stage, merge(req.Details, details), req.Comment))
	return tr, nil
}

// approve records one reviewer's approval. The record reaches APPROVED only on
// the call that crosses the consensus threshold; callers hold the document
// lock, so exactly one approval observes the crossing.
func (e *LifecycleEngine) approve(d *Document, req TransitionRequest) (*Transition, error) {
	required := e.policy.MinReviewersFor(d.DocumentType)

	if d.Stage == StageDraft && required == 0 {
		now := e.clock.Now()
		next := d.Clone()
		next.Stage = StageApproved
		next.UpdatedAt = now
		return &Transition{
			From:     d.Stage,
			Document: next,
			Entries: []*AuditEntry{e.entry(next, ActionApprove, req.Actor, d.Stage, next.Stage,
				merge(req.Details, map[string]string{"review": "bypassed"}), req.Comment)},
		}, nil
	}
	if d.Stage != StageReview {
		return nil, &InvalidTransition{From: d.Stage, To: StageApproved}
	}
	if req.Actor == "" {
		return nil, &PreconditionFailed{From: d.Stage, To: StageApproved, Reason: "approval needs a reviewer"}
	}

	idx := findReviewer(d.Reviewers, req.Actor)
	if idx >= 0 && d.Reviewers[idx].Decision == DecisionApproved {
		approved, pending := tally(d.Reviewers)
		return nil, &InsufficientReviewers{Approved: approved, Required: max(required, approved+len(pending)), Pending: pending}
	}

	now := e.clock.Now()
	next := d.Clone()
	next.UpdatedAt = now
	vote := ReviewerAssignment{ReviewerID: req.Actor, Decision: DecisionApproved, DecidedAt: now}
	if idx >= 0 {
		next.Reviewers[idx] = vote
	} else {
		next.Reviewers = append(next.Reviewers, vote)
	}

	approved, pending := tally(next.Reviewers)
	details := map[string]string{
		"reviewer":  req.Actor,
		"approvals": strconv.Itoa(approved),
		"required":  strconv.Itoa(max(required, approved+len(pending))),
	}
	tr := &Transition{From: d.Stage, Document: next}
	if approved >= required && len(pending) == 0 {
		next.Stage = StageApproved
		tr.Entries = append(tr.Entries, e.entry(next, ActionApprove, req.Actor, d.Stage, next.Stage, merge(req.Details, details), req.Comment))
		return tr, nil
	}
	tr.Entries = append(tr.Entries, e.entry(next, ActionReviewRecorded, req.Actor, d.Stage, next.Stage, merge(req.Details, details), req.Comment))
	return tr, nil
}

// reject moves REVIEW to REJECTED and immediately on to DRAFT. Only the DRAFT
// record is persisted; both hops are audited.
func (e *LifecycleEngine) reject(d *Document, req TransitionRequest) (*Transition, error) {
	if d.Stage != StageReview {
		return nil, &InvalidTransition{From: d.Stage, To: StageRejected}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, &MissingReason{Action: ActionReject}
	}
	if req.Actor == "" {
		return nil, &PreconditionFailed{From: d.Stage, To: StageRejected, Reason: "rejection needs a reviewer"}
	}
	if req.Actor != SystemActor && len(d.Reviewers) > 0 && findReviewer(d.Reviewers, req.Actor) < 0 {
		return nil, &PreconditionFailed{From: d.Stage, To: StageRejected,
			Reason: fmt.Sprintf("%s is not an assigned reviewer", req.Actor)}
	}

	now := e.clock.Now()
	next := d.Clone()
	next.UpdatedAt = now
	next.Stage = StageRejected
	rejectEntry := e.entry(next, ActionReject, req.Actor, d.Stage, StageRejected,
		merge(req.Details, map[string]string{"reason": reason, "reviewer": req.Actor}), req.Comment)

	// A fresh review cycle starts from DRAFT with every reviewer pending again.
	next.Stage = StageDraft
	next.ReviewStartedAt = time.Time{}
	if req.Actor != SystemActor && findReviewer(next.Reviewers, req.Actor) < 0 {
		next.Reviewers = append(next.Reviewers, ReviewerAssignment{ReviewerID: req.Actor})
	}
	for i := range next.Reviewers {
		next.Reviewers[i].Decision = DecisionPending
		next.Reviewers[i].DecidedAt = time.Time{}
	}
	revertEntry := e.entry(next, ActionRevertToDraft, SystemActor, StageRejected, StageDraft,
		map[string]string{"reason": reason}, "")

	return &Transition{From: d.Stage, Document: next, Entries: []*AuditEntry{rejectEntry, revertEntry}}, nil
}

// publish validates APPROVED to PUBLISHED. The caller performs the physical
// copy and fills in PublishedPath, PublishedAt and ContentHash before commit.
func (e *LifecycleEngine) publish(d *Document, req TransitionRequest) (*Transition, error) {
	switch {
	case d.Stage == StageApproved:
	case d.Stage == StagePublished && req.Force:
	default:
		return nil, &InvalidTransition{From: d.Stage, To: StagePublished}
	}
	if d.Visibility != VisibilityPublic {
		return nil, &PreconditionFailed{From: d.Stage, To: StagePublished,
			Reason: fmt.Sprintf("visibility is %s, publishing requires %s", d.Visibility, VisibilityPublic)}
	}

	next := d.Clone()
	next.UpdatedAt = e.clock.Now()
	next.Stage = StagePublished
	return &Transition{
		From:     d.Stage,
		Document: next,
		Entries:  []*AuditEntry{e.entry(next, ActionPublish, req.Actor, d.Stage, next.Stage, merge(req.Details, nil), req.Comment)},
	}, nil
}

// unpublish validates PUBLISHED to APPROVED. The caller removes the public copy.
func (e *LifecycleEngine) unpublish(d *Document, req TransitionRequest) (*Transition, error) {
	if d.Stage != StagePublished {
		return nil, &InvalidTransition{From: d.Stage, To: StageApproved}
	}
	reason := strings.TrimSpace(req.Reason)
	if e.requireUnpublishReason && reason == "" {
		return nil, &MissingReason{Action: ActionUnpublish}
	}

	now := e.clock.Now()
	next := d.Clone()
	next.UpdatedAt = now
	next.Stage = StageApproved
	next.PublishedPath = ""
	next.UnpublishedAt = now
	details := map[string]string{"published_path": d.PublishedPath}
	if reason != "" {
		details["reason"] = reason
	}
	return &Transition{
		From:     d.Stage,
		Document: next,
		Entries:  []*AuditEntry{e.entry(next, ActionUnpublish, req.Actor, d.Stage, next.Stage, merge(req.Details, details), req.Comment)},
	}, nil
}

// archive is permitted from every stage except ARCHIVED itself. A published
// copy is withdrawn by the caller.
func (e *LifecycleEngine) archive(d *Document, req TransitionRequest) (*Transition, error) {
	if d.Stage == StageArchived {
		return nil, &InvalidTransition{From: d.Stage, To: StageArchived}
	}

	now := e.clock.Now()
	next := d.Clone()
	next.UpdatedAt = now
	next.Stage = StageArchived
	next.ArchivedFrom = d.Stage
	if d.Stage == StageRejected {
		next.ArchivedFrom = StageDraft
	}
	details := map[string]string{}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		details["reason"] = reason
	}
	if d.Stage == StagePublished {
		details["published_path"] = d.PublishedPath
		next.PublishedPath = ""
		next.UnpublishedAt = now
	}
	return &Transition{
		From:     d.Stage,
		Document: next,
		Entries:  []*AuditEntry{e.entry(next, ActionArchive, req.Actor, d.Stage, next.Stage, merge(req.Details, details), req.Comment)},
	}, nil
}

// unarchive returns to the stage held before archiving. A document that was
// published but is no longer public comes back as APPROVED.
func (e *LifecycleEngine) unarchive(d *Document, req TransitionRequest) (*Transition, error) {
	target := d.ArchivedFrom
	if target == "" {
		target = StageDraft
	}
	if d.Stage != StageArchived {
		return nil, &InvalidTransition{From: d.Stage, To: target}
	}
	if target == StagePublished && d.Visibility != VisibilityPublic {
		target = StageApproved
	}

	next := d.Clone()
	next.UpdatedAt = e.clock.Now()
	next.Stage = target
	next.ArchivedFrom = ""
	return &Transition{
		From:     d.Stage,
		Document: next,
		Entries:  []*AuditEntry{e.entry(next, ActionUnarchive, req.Actor, d.Stage, next.Stage, merge(req.Details, nil), req.Comment)},
	}, nil
}

func (e *LifecycleEngine) entry(d *Document, action Action, actor string, from, to Stage, details map[string]string, comment string) *AuditEntry {
	if actor == "" {
		actor = SystemActor
	}
	return &AuditEntry{
		ID:         e.ids.New(),
		DocumentID: d.ID,
		Action:     action,
		Actor:      actor,
		Timestamp:  e.clock.Now(),
		FromState:  from,
		ToState:    to,
		Details:    details,
		Comment:    comment,
	}
}

// tally counts approvals and lists assigned reviewers that are still pending.
func tally(assignments []ReviewerAssignment) (approved int, pending []string) {
	for _, a := range assignments {
		switch a.Decision {
		case DecisionApproved:
			approved++
		case DecisionPending, "":
			pending = append(pending, a.ReviewerID)
		}
	}
	sort.Strings(pending)
	return approved, pending
}

func findReviewer(assignments []ReviewerAssignment, reviewerID string) int {
	for i, a := range assignments {
		if a.ReviewerID == reviewerID {
			return i
		}
	}
	return -1
}

func reviewerIDs(assignments []ReviewerAssignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ReviewerID)
	}
	return ids
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// merge combines caller-supplied details with engine details; engine keys win.
func merge(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

package doc

import (
	"context"
	"errors"
	"fmt"
)

// Publish copies an APPROVED public document to the mirror. With force, an
// already published document is copied again from its current source.
func (s *Service) Publish(ctx context.Context, id, actor string, force bool) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	details := map[string]string{"rule": "manual"}
	if force {
		details["force"] = "true"
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerPublish, Actor: actor, Force: force, Details: details})
	if err != nil {
		return nil, err
	}
	return s.publishAndCommit(ctx, tr)
}

// Unpublish removes the public copy and returns the document to APPROVED.
func (s *Service) Unpublish(ctx context.Context, id, actor, reason string) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerUnpublish, Actor: actor, Reason: reason})
	if err != nil {
		return nil, err
	}
	if err := s.syncer.Unpublish(d.PublishedPath); err != nil {
		return nil, fmt.Errorf("removing public copy: %w", err)
	}
	if err := s.store.UpdateDocument(ctx, tr.Document, tr.Entries...); err != nil {
		// The record still claims a public copy; the next sync republishes it.
		return nil, fmt.Errorf("committing unpublish: %w", err)
	}
	s.logTransition(tr)
	return tr.Document, nil
}

// SetVisibility changes the audience of a document. A published document can
// only leave public visibility with force, which unpublishes it first.
func (s *Service) SetVisibility(ctx context.Context, id, actor string, visibility Visibility, force bool) (*Document, error) {
	if !visibility.Valid() {
		return nil, fmt.Errorf("unknown visibility %q", visibility)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Visibility == visibility {
		return d, nil
	}
	change := map[string]string{"from": string(d.Visibility), "to": string(visibility)}

	if d.Stage == StagePublished && visibility != VisibilityPublic {
		if !force {
			return nil, &PreconditionFailed{From: d.Stage, To: d.Stage,
				Reason: fmt.Sprintf("document is published; unpublish it or force the change to %s", visibility)}
		}
		tr, err := s.lifecycle.Apply(d, TransitionRequest{
			Trigger: TriggerUnpublish,
			Actor:   actor,
			Reason:  fmt.Sprintf("visibility changed to %s", visibility),
		})
		if err != nil {
			return nil, err
		}
		if err := s.syncer.Unpublish(d.PublishedPath); err != nil {
			return nil, fmt.Errorf("removing public copy: %w", err)
		}
		tr.Document.Visibility = visibility
		tr.Entries = append(tr.Entries, s.lifecycle.Record(tr.Document, ActionVisibilityChanged, actor, change, ""))
		if err := s.store.UpdateDocument(ctx, tr.Document, tr.Entries...); err != nil {
			return nil, fmt.Errorf("committing visibility change: %w", err)
		}
		s.logTransition(tr)
		return tr.Document, nil
	}

	next := d.Clone()
	next.Visibility = visibility
	next.UpdatedAt = s.clock.Now()
	entry := s.lifecycle.Record(next, ActionVisibilityChanged, actor, change, "")
	if err := s.store.UpdateDocument(ctx, next, entry); err != nil {
		return nil, fmt.Errorf("committing visibility change: %w", err)
	}
	s.logger.Info("visibility changed", "document", id, "from", d.Visibility, "to", visibility)
	return next, nil
}

// OnPhaseChange re-evaluates the phase rule for every APPROVED document owned
// by the work item. Documents that were unpublished are left alone. It returns the documents it published.
// A failure on one document does not stop the others; all failures are
// returned joined.
func (s *Service) OnPhaseChange(ctx context.Context, ev PhaseChange) ([]*Document, error) {
	if !ev.NewPhase.Valid() {
		return nil, fmt.Errorf("unknown phase %q", ev.NewPhase)
	}
	docs, err := s.store.ListDocuments(ctx, DocumentFilter{
		Stage:      StageApproved,
		EntityType: EntityWorkItem,
		EntityID:   ev.WorkItemID,
	})
	if err != nil {
		return nil, fmt.Errorf("listing approved documents: %w", err)
	}

	var published []*Document
	var errs []error
	for _, d := range docs {
		doc, err := s.publishOnPhase(ctx, d.ID, ev.NewPhase)
		if err != nil {
			s.logger.Error("phase auto-publish failed", "document", d.ID, "phase", ev.NewPhase, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
			continue
		}
		if doc != nil {
			published = append(published, doc)
		}
	}
	return published, errors.Join(errs...)
}

func (s *Service) publishOnPhase(ctx context.Context, id string, phase Phase) (*Document, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	// Withdrawn documents stay withdrawn until someone publishes them by hand.
	if d.Stage != StageApproved || !d.UnpublishedAt.IsZero() {
		return nil, nil
	}
	decision := DecideAutoPublish(RuleInput{
		DocumentType:  d.DocumentType,
		Visibility:    d.Visibility,
		WorkItemPhase: phase,
		Policy:        s.policy,
	})
	// Only the phase rule reacts to phase events; the type rule fires once,
	// on reaching APPROVED.
	if !decision.Publish || decision.Rule != RulePhase {
		return nil, nil
	}
	tr, err := s.lifecycle.Apply(d, TransitionRequest{
		Trigger: TriggerPublish,
		Actor:   SystemActor,
		Details: map[string]string{"rule": decision.Rule, "reason": decision.Reason, "phase": string(phase)},
	})
	if err != nil {
		return nil, err
	}
	tr.Document.AutoPublishRule = decision.Rule
	return s.publishAndCommit(ctx, tr)
}

// approveAndMaybePublish commits a transition that completed review. If the
// rules say publish now, the approval and the publish are one write and a
// publish failure fails the whole call.
func (s *Service) approveAndMaybePublish(ctx context.Context, tr *Transition) (*Document, error) {
	next := tr.Document
	decision, err := s.decide(ctx, next)
	if err != nil {
		return nil, err
	}
	next.AutoPublish = decision.Eligible()
	next.AutoPublishRule = decision.Rule

	if !decision.Publish {
		if err := s.store.UpdateDocument(ctx, next, tr.Entries...); err != nil {
			return nil, fmt.Errorf("committing %s: %w", next.Stage, err)
		}
		s.logTransition(tr)
		if decision.Eligible() {
			s.logger.Info("auto-publish deferred", "document", next.ID, "reason", decision.Reason)
		}
		return next, nil
	}

	pub, err := s.lifecycle.Apply(next, TransitionRequest{
		Trigger: TriggerPublish,
		Actor:   SystemActor,
		Details: map[string]string{"rule": decision.Rule, "reason": decision.Reason},
	})
	if err != nil {
		return nil, fmt.Errorf("auto-publish: %w", err)
	}
	combined := &Transition{
		From:     tr.From,
		Document: pub.Document,
		Entries:  append(append([]*AuditEntry{}, tr.Entries...), pub.Entries...),
	}
	return s.publishAndCommit(ctx, combined)
}

// publishAndCommit performs the physical publish for a transition that lands
// on PUBLISHED, then commits. If the commit fails the public path is reverted
// to what it held before.
func (s *Service) publishAndCommit(ctx context.Context, tr *Transition) (*Document, error) {
	next := tr.Document
	res, err := s.syncer.Publish(next)
	if err != nil {
		return nil, fmt.Errorf("publishing %s: %w", next.ID, err)
	}
	next.PublishedPath = res.PublishedPath
	next.PublishedAt = s.clock.Now()
	next.ContentHash = res.Checksum

	last := tr.Entries[len(tr.Entries)-1]
	last.Details = merge(last.Details, map[string]string{
		"published_path": res.PublishedPath,
		"checksum":       res.Checksum,
	})

	if err := s.store.UpdateDocument(ctx, next, tr.Entries...); err != nil {
		s.syncer.Revert(res)
		return nil, fmt.Errorf("committing publish: %w", err)
	}
	s.logTransition(tr)
	s.logger.Info("document published", "document", next.ID, "path", res.PublishedPath, "checksum", res.Checksum)
	return next, nil
}

// decide evaluates the auto-publish rules using the owning work item's
// current phase.
func (s *Service) decide(ctx context.Context, d *Document) (RuleDecision, error) {
	var phase Phase
	if d.EntityType == EntityWorkItem {
		p, err := s.workItems.WorkItemPhase(ctx, d.EntityID)
		if err != nil {
			return RuleDecision{}, fmt.Errorf("looking up work item phase: %w", err)
		}
		phase = p
	}
	return DecideAutoPublish(RuleInput{
		DocumentType:  d.DocumentType,
		Visibility:    d.Visibility,
		WorkItemPhase: phase,
		Policy:        s.policy,
	}), nil
}

package doc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExpiredReview is the per-document result of ExpireReviews.
type ExpiredReview struct {
	DocumentID string
	Action     ExpiryAction
	Err        error
}

// ReviewTimedOutReason is the rejection reason recorded by the reject action.
const ReviewTimedOutReason = "review timed out"

// ExpireReviews applies the configured expiry action to every review that
// started longer ago than the review timeout. Escalation is recorded once per
// review cycle.
func (s *Service) ExpireReviews(ctx context.Context) ([]ExpiredReview, error) {
	if s.opts.ReviewTimeout <= 0 || s.opts.ExpiryAction == ExpiryNone {
		return nil, nil
	}
	docs, err := s.store.ListDocuments(ctx, DocumentFilter{Stage: StageReview})
	if err != nil {
		return nil, fmt.Errorf("listing documents in review: %w", err)
	}

	cutoff := s.clock.Now().Add(-s.opts.ReviewTimeout)
	var results []ExpiredReview
	for _, d := range docs {
		if d.ReviewStartedAt.IsZero() || d.ReviewStartedAt.After(cutoff) {
			continue
		}
		acted, err := s.expireOne(ctx, d.ID)
		if err != nil {
			s.logger.Error("review expiry failed", "document", d.ID, "error", err)
			results = append(results, ExpiredReview{DocumentID: d.ID, Action: s.opts.ExpiryAction, Err: err})
			continue
		}
		if acted {
			results = append(results, ExpiredReview{DocumentID: d.ID, Action: s.opts.ExpiryAction})
		}
	}
	return results, nil
}

func (s *Service) expireOne(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	d, err := s.load(ctx, id)
	if err != nil {
		return false, err
	}
	if d.Stage != StageReview {
		return false, nil
	}

	switch s.opts.ExpiryAction {
	case ExpiryReject:
		tr, err := s.lifecycle.Apply(d, TransitionRequest{Trigger: TriggerReject, Actor: SystemActor, Reason: ReviewTimedOutReason})
		if err != nil {
			return false, err
		}
		if _, err := s.commitTransition(ctx, tr); err != nil {
			return false, err
		}
		return true, nil

	case ExpiryEscalate:
		history, err := s.store.ListAudit(ctx, id)
		if err != nil {
			return false, fmt.Errorf("listing audit log: %w", err)
		}
		for _, e := range history {
			if e.Action == ActionReviewEscalated && !e.Timestamp.Before(d.ReviewStartedAt) {
				return false, nil
			}
		}
		_, pending := tally(d.Reviewers)
		details := map[string]string{
			"review_started_at": d.ReviewStartedAt.Format(time.RFC3339),
			"timeout_hours":     strconv.FormatFloat(s.opts.ReviewTimeout.Hours(), 'f', -1, 64),
		}
		if len(pending) > 0 {
			details["pending"] = strings.Join(pending, ",")
		}
		if err := s.store.AppendAudit(ctx, s.lifecycle.Record(d, ActionReviewEscalated, SystemActor, details, "")); err != nil {
			return false, fmt.Errorf("recording escalation: %w", err)
		}
		s.logger.Warn("review escalated", "document", id, "pending", pending)
		return true, nil
	}
	return false, nil
}

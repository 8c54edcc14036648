package doc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"doclife/internal/doc"
)

func TestDecideAutoPublish(t *testing.T) {
	immediate := doc.Policy{AutoPublish: map[doc.DocumentType]doc.OverrideMode{doc.TypeReleaseNotes: doc.OverrideImmediate}}
	manual := doc.Policy{AutoPublish: map[doc.DocumentType]doc.OverrideMode{doc.TypeUserGuide: doc.OverrideManual}}

	tests := []struct {
		name         string
		in           doc.RuleInput
		wantPub      bool
		wantRule     string
		wantEligible bool
	}{
		{
			name: "user guide publishes on approval",
			in:   doc.RuleInput{DocumentType: doc.TypeUserGuide, Visibility: doc.VisibilityPublic},
			wantPub: true, wantRule: doc.RuleType, wantEligible: true,
		},
		{
			name: "team user guide stays",
			in:   doc.RuleInput{DocumentType: doc.TypeUserGuide, Visibility: doc.VisibilityTeam},
			wantRule: doc.RuleType,
		},
		{
			name: "adr waits for operations",
			in:   doc.RuleInput{DocumentType: doc.TypeADR, Visibility: doc.VisibilityPublic, WorkItemPhase: doc.PhaseImplementation},
			wantRule: doc.RulePhase, wantEligible: true,
		},
		{
			name: "adr in operations",
			in:   doc.RuleInput{DocumentType: doc.TypeADR, Visibility: doc.VisibilityPublic, WorkItemPhase: doc.PhaseOperations},
			wantPub: true, wantRule: doc.RulePhase, wantEligible: true,
		},
		{
			name: "technical spec in review phase but team visibility",
			in:   doc.RuleInput{DocumentType: doc.TypeTechnicalSpec, Visibility: doc.VisibilityTeam, WorkItemPhase: doc.PhaseReview},
			wantRule: doc.RulePhase, wantEligible: true,
		},
		{
			name: "meeting notes never",
			in:   doc.RuleInput{DocumentType: doc.TypeMeetingNotes, Visibility: doc.VisibilityPublic},
			wantRule: doc.RuleDefault,
		},
		{
			name: "immediate override",
			in:   doc.RuleInput{DocumentType: doc.TypeReleaseNotes, Visibility: doc.VisibilityPublic, Policy: immediate},
			wantPub: true, wantRule: doc.RuleContextImmediate, wantEligible: true,
		},
		{
			name: "immediate override still needs public",
			in:   doc.RuleInput{DocumentType: doc.TypeReleaseNotes, Visibility: doc.VisibilityPrivate, Policy: immediate},
			wantRule: doc.RuleContextImmediate,
		},
		{
			name: "manual override beats type rule",
			in:   doc.RuleInput{DocumentType: doc.TypeUserGuide, Visibility: doc.VisibilityPublic, Policy: manual},
			wantRule: doc.RuleContextManual,
		},
		{
			name: "unknown type",
			in:   doc.RuleInput{DocumentType: "memo", Visibility: doc.VisibilityPublic},
			wantRule: doc.RuleDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := doc.DecideAutoPublish(tt.in)
			assert.Equal(t, tt.wantPub, got.Publish, "Publish (reason %q)", got.Reason)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantEligible, got.Eligible())
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestDecideAutoPublish_NonPublicNeverPublishes(t *testing.T) {
	for _, docType := range doc.AllDocumentTypes {
		for _, phase := range append([]doc.Phase{""}, doc.AllPhases...) {
			for _, vis := range []doc.Visibility{doc.VisibilityPrivate, doc.VisibilityTeam} {
				got := doc.DecideAutoPublish(doc.RuleInput{DocumentType: docType, Visibility: vis, WorkItemPhase: phase})
				assert.False(t, got.Publish, "%s/%s/%s published", docType, vis, phase)
			}
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  doc.Policy
		wantErr bool
	}{
		{name: "zero"},
		{name: "valid", policy: doc.Policy{
			AutoPublish:  map[doc.DocumentType]doc.OverrideMode{doc.TypeADR: doc.OverrideManual},
			MinReviewers: map[doc.DocumentType]int{doc.TypeADR: 3},
		}},
		{name: "unknown type", policy: doc.Policy{AutoPublish: map[doc.DocumentType]doc.OverrideMode{"memo": doc.OverrideManual}}, wantErr: true},
		{name: "unknown mode", policy: doc.Policy{AutoPublish: map[doc.DocumentType]doc.OverrideMode{doc.TypeADR: "later"}}, wantErr: true},
		{name: "negative reviewers", policy: doc.Policy{MinReviewers: map[doc.DocumentType]int{doc.TypeADR: -1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	p := doc.Policy{MinReviewers: map[doc.DocumentType]int{doc.TypeADR: 3}}
	assert.Equal(t, 3, p.MinReviewersFor(doc.TypeADR))
	assert.Equal(t, 1, p.MinReviewersFor(doc.TypeDesignDoc))
}

package doc

import (
	"fmt"
	"sort"
)

// AutoPublishClass is the default auto-publish behaviour of a document type.
type AutoPublishClass string

const (
	AutoPublishNever  AutoPublishClass = "never"
	AutoPublishAlways AutoPublishClass = "always"
	AutoPublishPhase  AutoPublishClass = "phase"
)

// TypeSpec is the catalog entry for one document type.
type TypeSpec struct {
	Category     Category
	MinReviewers int
	Visibility   Visibility // default for new documents
	AutoPublish  AutoPublishClass
	TriggerPhase Phase // set only for AutoPublishPhase
}

// catalog maps every DocumentType to exactly one category and its review and
// publication defaults. ValidateCatalog checks it at init.
var catalog = map[DocumentType]TypeSpec{
	TypeRequirements: {Category: CategoryPlanning, MinReviewers: 1, Visibility: VisibilityTeam, AutoPublish: AutoPublishNever},
	TypeUserStory:    {Category: CategoryPlanning, MinReviewers: 1, Visibility: VisibilityTeam, AutoPublish: AutoPublishNever},
	TypeRoadmap:      {Category: CategoryPlanning, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishNever},

	TypeADR:           {Category: CategoryArchitecture, MinReviewers: 2, Visibility: VisibilityPublic, AutoPublish: AutoPublishPhase, TriggerPhase: PhaseOperations},
	TypeDesignDoc:     {Category: CategoryArchitecture, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishPhase, TriggerPhase: PhaseOperations},
	TypeTechnicalSpec: {Category: CategoryArchitecture, MinReviewers: 1, Visibility: VisibilityTeam, AutoPublish: AutoPublishPhase, TriggerPhase: PhaseReview},

	TypeUserGuide:       {Category: CategoryGuides, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishAlways},
	TypeDeveloperGuide:  {Category: CategoryGuides, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishAlways},
	TypeTutorial:        {Category: CategoryGuides, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishAlways},
	TypeTroubleshooting: {Category: CategoryGuides, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishAlways},

	TypeAPIDoc:   {Category: CategoryReference, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishAlways},
	TypeGlossary: {Category: CategoryReference, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishNever},

	TypeMigrationGuide:  {Category: CategoryProcesses, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishPhase, TriggerPhase: PhaseReview},
	TypeDeploymentGuide: {Category: CategoryProcesses, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishPhase, TriggerPhase: PhaseOperations},
	TypeRunbook:         {Category: CategoryProcesses, MinReviewers: 1, Visibility: VisibilityTeam, AutoPublish: AutoPublishNever},

	TypeReleaseNotes: {Category: CategoryCommunication, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishNever},
	TypeAnnouncement: {Category: CategoryCommunication, MinReviewers: 1, Visibility: VisibilityPublic, AutoPublish: AutoPublishNever},

	TypeTestPlan:   {Category: CategoryTesting, MinReviewers: 1, Visibility: VisibilityTeam, AutoPublish: AutoPublishNever},
	TypeTestReport: {Category: CategoryTesting, MinReviewers: 0, Visibility: VisibilityTeam, AutoPublish: AutoPublishNever},

	TypeMeetingNotes: {Category: CategoryNotes, MinReviewers: 0, Visibility: VisibilityPrivate, AutoPublish: AutoPublishNever},
	TypeInternalNote: {Category: CategoryNotes, MinReviewers: 0, Visibility: VisibilityPrivate, AutoPublish: AutoPublishNever},
}

func init() {
	if err := ValidateCatalog(); err != nil {
		panic(err)
	}
}

// ValidateCatalog checks that every DocumentType has exactly one well-formed
// catalog entry and that the catalog holds no unknown types.
func ValidateCatalog() error {
	seen := make(map[DocumentType]bool, len(AllDocumentTypes))
	for _, t := range AllDocumentTypes {
		if seen[t] {
			return fmt.Errorf("document type %q listed twice", t)
		}
		seen[t] = true

		spec, ok := catalog[t]
		if !ok {
			return fmt.Errorf("document type %q has no catalog entry", t)
		}
		if !spec.Category.Valid() {
			return fmt.Errorf("document type %q maps to unknown category %q", t, spec.Category)
		}
		if spec.MinReviewers < 0 {
			return fmt.Errorf("document type %q has negative reviewer minimum", t)
		}
		if !spec.Visibility.Valid() {
			return fmt.Errorf("document type %q has unknown default visibility %q", t, spec.Visibility)
		}
		switch spec.AutoPublish {
		case AutoPublishNever, AutoPublishAlways:
			if spec.TriggerPhase != "" {
				return fmt.Errorf("document type %q sets a trigger phase without phase gating", t)
			}
		case AutoPublishPhase:
			if !spec.TriggerPhase.Valid() {
				return fmt.Errorf("document type %q is phase gated without a valid trigger phase", t)
			}
		default:
			return fmt.Errorf("document type %q has unknown auto-publish class %q", t, spec.AutoPublish)
		}
	}
	for t := range catalog {
		if !seen[t] {
			return fmt.Errorf("catalog entry %q is not a listed document type", t)
		}
	}
	return nil
}

// SpecFor returns the catalog entry for t.
func SpecFor(t DocumentType) (TypeSpec, bool) {
	spec, ok := catalog[t]
	return spec, ok
}

// CategoryFor returns the category a document type belongs to, or "" for an
// unknown type.
func CategoryFor(t DocumentType) Category {
	return catalog[t].Category
}

// MinReviewers returns the default consensus threshold for t.
func MinReviewers(t DocumentType) int {
	spec, ok := catalog[t]
	if !ok {
		return 1
	}
	return spec.MinReviewers
}

// TypesInCategory returns the document types that belong to c, sorted.
func TypesInCategory(c Category) []DocumentType {
	var types []DocumentType
	for t, spec := range catalog {
		if spec.Category == c {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

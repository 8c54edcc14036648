package doc

import "time"

// Category is the top-level classifier of a document and the first segment
// of its canonical path.
type Category string

const (
	CategoryPlanning      Category = "planning"
	CategoryArchitecture  Category = "architecture"
	CategoryGuides        Category = "guides"
	CategoryReference     Category = "reference"
	CategoryProcesses     Category = "processes"
	CategoryCommunication Category = "communication"
	CategoryTesting       Category = "testing"
	CategoryNotes         Category = "notes"
)

// AllCategories lists every known category.
var AllCategories = []Category{
	CategoryPlanning,
	CategoryArchitecture,
	CategoryGuides,
	CategoryReference,
	CategoryProcesses,
	CategoryCommunication,
	CategoryTesting,
	CategoryNotes,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// DocumentType is the fine-grained classifier of a document and the second
// segment of its canonical path.
type DocumentType string

const (
	TypeRequirements    DocumentType = "requirements"
	TypeUserStory       DocumentType = "user_story"
	TypeRoadmap         DocumentType = "roadmap"
	TypeADR             DocumentType = "adr"
	TypeDesignDoc       DocumentType = "design_doc"
	TypeTechnicalSpec   DocumentType = "technical_spec"
	TypeUserGuide       DocumentType = "user_guide"
	TypeDeveloperGuide  DocumentType = "developer_guide"
	TypeTutorial        DocumentType = "tutorial"
	TypeTroubleshooting DocumentType = "troubleshooting"
	TypeAPIDoc          DocumentType = "api_doc"
	TypeGlossary        DocumentType = "glossary"
	TypeMigrationGuide  DocumentType = "migration_guide"
	TypeDeploymentGuide DocumentType = "deployment_guide"
	TypeRunbook         DocumentType = "runbook"
	TypeReleaseNotes    DocumentType = "release_notes"
	TypeAnnouncement    DocumentType = "announcement"
	TypeTestPlan        DocumentType = "test_plan"
	TypeTestReport      DocumentType = "test_report"
	TypeMeetingNotes    DocumentType = "meeting_notes"
	TypeInternalNote    DocumentType = "internal_note"
)

// AllDocumentTypes lists every known document type. The type catalog must
// hold exactly one entry for each of them.
var AllDocumentTypes = []DocumentType{
	TypeRequirements,
	TypeUserStory,
	TypeRoadmap,
	TypeADR,
	TypeDesignDoc,
	TypeTechnicalSpec,
	TypeUserGuide,
	TypeDeveloperGuide,
	TypeTutorial,
	TypeTroubleshooting,
	TypeAPIDoc,
	TypeGlossary,
	TypeMigrationGuide,
	TypeDeploymentGuide,
	TypeRunbook,
	TypeReleaseNotes,
	TypeAnnouncement,
	TypeTestPlan,
	TypeTestReport,
	TypeMeetingNotes,
	TypeInternalNote,
}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Visibility is the audience scope of a document.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityTeam, VisibilityPublic:
		return true
	}
	return false
}

// Stage is a lifecycle state.
type Stage string

const (
	StageDraft     Stage = "draft"
	StageReview    Stage = "review"
	StageApproved  Stage = "approved"
	StageRejected  Stage = "rejected"
	StagePublished Stage = "published"
	StageArchived  Stage = "archived"
)

// AllStages lists every lifecycle state.
var AllStages = []Stage{StageDraft, StageReview, StageApproved, StageRejected, StagePublished, StageArchived}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

// Phase is the lifecycle phase of a work item, supplied by the work-item engine.
type Phase string

const (
	PhaseDiscovery      Phase = "D1"
	PhasePlanning       Phase = "P1"
	PhaseImplementation Phase = "I1"
	PhaseReview         Phase = "R1"
	PhaseOperations     Phase = "O1"
	PhaseEvolution      Phase = "E1"
)

// AllPhases lists every work item phase in workflow order.
var AllPhases = []Phase{PhaseDiscovery, PhasePlanning, PhaseImplementation, PhaseReview, PhaseOperations, PhaseEvolution}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range AllPhases {
		if p == known {
			return true
		}
	}
	return false
}

// Entity types a document may belong to.
const (
	EntityWorkItem = "work_item"
	EntityTask     = "task"
	EntityProject  = "project"
)

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ReviewerAssignment records one reviewer's decision on a document.
type ReviewerAssignment struct {
	ReviewerID string
	Decision   Decision
	DecidedAt  time.Time // zero while pending
}

// ReviewStatus summarises the review gate of a document.
type ReviewStatus string

const (
	ReviewNone     ReviewStatus = "none"
	ReviewBypassed ReviewStatus = "bypassed"
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
)

// Document is the DocumentReference record: where a documentation artifact
// lives and where it stands in its lifecycle.
type Document struct {
	ID           string
	EntityType   string
	EntityID     string
	Category     Category
	DocumentType DocumentType
	FilePath     string // relative to the private root
	Title        string
	Description  string
	ContentHash  string // SHA-256 of the file at FilePath
	Visibility   Visibility
	Stage        Stage

	// ArchivedFrom is the stage held immediately before archiving. Set only
	// while Stage is StageArchived.
	ArchivedFrom Stage

	Reviewers       []ReviewerAssignment
	ReviewStartedAt time.Time

	PublishedPath string // relative to the public root; set only while published
	PublishedAt   time.Time
	UnpublishedAt time.Time

	AutoPublish     bool
	AutoPublishRule string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	if d.Reviewers != nil {
		c.Reviewers = make([]ReviewerAssignment, len(d.Reviewers))
		copy(c.Reviewers, d.Reviewers)
	}
	return &c
}

// ReviewStatus derives the review gate state from the stage and assignments.
func (d *Document) ReviewStatus() ReviewStatus {
	if MinReviewers(d.DocumentType) == 0 && len(d.Reviewers) == 0 {
		return ReviewBypassed
	}
	switch d.Stage {
	case StageReview:
		return ReviewPending
	case StageApproved, StagePublished:
		return ReviewApproved
	}
	return ReviewNone
}

// Action names an audit log event.
type Action string

const (
	ActionCreate            Action = "create"
	ActionSubmitReview      Action = "submit-review"
	ActionReviewRecorded    Action = "review-recorded"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionRevertToDraft     Action = "revert-to-draft"
	ActionPublish           Action = "publish"
	ActionUnpublish         Action = "unpublish"
	ActionArchive           Action = "archive"
	ActionUnarchive         Action = "unarchive"
	ActionVisibilityChanged Action = "visibility-changed"
	ActionSyncRepublish     Action = "sync-republish"
	ActionSyncRehash        Action = "sync-rehash"
	ActionMigratePath       Action = "migrate-path"
	ActionReviewEscalated   Action = "review-escalated"
)

// AuditEntry is one immutable line of a document's history.
type AuditEntry struct {
	ID         string
	DocumentID string
	Action     Action
	Actor      string
	Timestamp  time.Time
	FromState  Stage
	ToState    Stage
	Details    map[string]string
	Comment    string
}

// SystemActor is recorded for actions the engine takes on its own.
const SystemActor = "system"

// DocumentFilter narrows ListDocuments. Zero fields match everything.
type DocumentFilter struct {
	Stage        Stage
	Category     Category
	DocumentType DocumentType
	EntityType   string
	EntityID     string
}

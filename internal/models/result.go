package models

import (
	"time"

	"gorm.io/datatypes"
)

// Verdict is the tri-state outcome of scoring an attempt.
type Verdict string

const (
	VerdictIncomplete Verdict = "INCOMPLETE"
	VerdictFail       Verdict = "FAIL"
	VerdictPass       Verdict = "PASS"
)

// ScoredItem is one checklist item as it looked at scoring time.
type ScoredItem struct {
	ItemID     uint   `json:"item_id"`
	Text       string `json:"text"`
	Completed  bool   `json:"completed"`
	Compulsory bool   `json:"compulsory"`
}

// SectionResult is an immutable per-section snapshot produced by the
// scoring engine. Completed is true iff every item in the section was
// marked complete (vacuously true for an empty section).
type SectionResult struct {
	Section   string       `json:"section"`
	Completed bool         `json:"completed"`
	Items     []ScoredItem `json:"items"`
}

// ChecklistResult is the persisted record of a submitted assessment.
// Participant fields are copied at submission time so later participant
// edits never alter historical results. Rows are insert-only: after
// creation only the tombstone fields and instructor comments may change.
type ChecklistResult struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	UUID string `json:"uuid" gorm:"not null;size:36;uniqueIndex"`

	// Participant snapshot
	ParticipantID       string `json:"participant_id" gorm:"not null;size:255;index"`
	ParticipantName     string `json:"participant_name" gorm:"not null;size:200"`
	ParticipantEmail    string `json:"participant_email" gorm:"size:255"`
	ParticipantIC       string `json:"participant_ic" gorm:"size:50"`
	ParticipantJob      string `json:"participant_job" gorm:"size:200"`
	ParticipantCategory string `json:"participant_category" gorm:"size:100"`

	ChecklistType  ChecklistType  `json:"checklist_type" gorm:"not null;size:50;index"`
	TotalItems     int            `json:"total_items" gorm:"not null"`
	CompletedItems int            `json:"completed_items" gorm:"not null"`
	Percentage     float64        `json:"percentage" gorm:"not null"`
	Verdict        Verdict        `json:"verdict" gorm:"not null;size:20;index"`
	Sections       datatypes.JSON `json:"sections" gorm:"type:jsonb"`

	InstructorComments *string `json:"instructor_comments" gorm:"type:text"`

	// Retake bookkeeping
	RetakeCount      int   `json:"retake_count" gorm:"not null;default:0"`
	IsRetake         bool  `json:"is_retake" gorm:"not null;default:false"`
	PreviousResultID *uint `json:"previous_result_id"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Soft-delete tombstone. Results are never hard-deleted.
	IsDeleted     bool       `json:"is_deleted" gorm:"not null;default:false;index"`
	DeletedBy     *string    `json:"deleted_by" gorm:"size:255"`
	DeletedAt     *time.Time `json:"deleted_at"`
	DeletedReason *string    `json:"deleted_reason" gorm:"type:text"`
}

func (ChecklistResult) TableName() string {
	return "checklist_results"
}

package validator

import (
	"github.com/resq-training/checklist-service/internal/models"
)

// ChecklistItemCreateRequest represents the request structure for creating checklist items
type ChecklistItemCreateRequest struct {
	ChecklistType models.ChecklistType `json:"checklist_type" validate:"required,checklist_type"`
	Section       string               `json:"section" validate:"required,max=100"`
	Text          string               `json:"text" validate:"required,max=1000"`
	Compulsory    bool                 `json:"compulsory"`
	OrderIndex    int                  `json:"order_index" validate:"min=0"`
}

// ChecklistItemUpdateRequest represents the request structure for updating checklist items
type ChecklistItemUpdateRequest struct {
	Section    *string `json:"section" validate:"omitempty,max=100"`
	Text       *string `json:"text" validate:"omitempty,max=1000"`
	Compulsory *bool   `json:"compulsory"`
	OrderIndex *int    `json:"order_index" validate:"omitempty,min=0"`
}

// SubmitResultRequest carries an assessment submission. Participant fields
// are snapshotted into the result row as-is; the service never resolves
// them against a live participant record.
type SubmitResultRequest struct {
	ParticipantID       string `json:"participant_id" validate:"required,max=255"`
	ParticipantName     string `json:"participant_name" validate:"required,max=200"`
	ParticipantEmail    string `json:"participant_email" validate:"omitempty,email,max=255"`
	ParticipantIC       string `json:"participant_ic" validate:"omitempty,max=50"`
	ParticipantJob      string `json:"participant_job" validate:"omitempty,max=200"`
	ParticipantCategory string `json:"participant_category" validate:"omitempty,max=100"`

	ChecklistType    models.ChecklistType `json:"checklist_type" validate:"required,checklist_type"`
	CompletedItemIDs []uint               `json:"completed_item_ids"`

	InstructorComments *string `json:"instructor_comments" validate:"omitempty,max=2000"`
}

// SoftDeleteResultRequest tombstones a result
type SoftDeleteResultRequest struct {
	DeletedBy string `json:"deleted_by" validate:"required,max=255"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// AnnotateResultRequest replaces instructor comments on a result
type AnnotateResultRequest struct {
	Comments string `json:"comments" validate:"required,max=2000"`
}

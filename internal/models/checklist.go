package models

import (
	"time"
)

// ChecklistType identifies one of the five fixed assessment categories.
// The string values are part of the persistence schema contract and must
// not be renamed.
type ChecklistType string

const (
	TypeOneManCPR     ChecklistType = "one_man_cpr"
	TypeTwoManCPR     ChecklistType = "two_man_cpr"
	TypeInfantCPR     ChecklistType = "infant_cpr"
	TypeAdultChoking  ChecklistType = "adult_choking"
	TypeInfantChoking ChecklistType = "infant_choking"
)

// ChecklistTypes lists every known checklist type in display order.
var ChecklistTypes = []ChecklistType{
	TypeOneManCPR,
	TypeTwoManCPR,
	TypeInfantCPR,
	TypeAdultChoking,
	TypeInfantChoking,
}

// IsValid reports whether t is one of the known checklist types.
func (t ChecklistType) IsValid() bool {
	switch t {
	case TypeOneManCPR, TypeTwoManCPR, TypeInfantCPR, TypeAdultChoking, TypeInfantChoking:
		return true
	}
	return false
}

// IsChoking reports whether t is one of the quota-scored choking types.
func (t ChecklistType) IsChoking() bool {
	return t == TypeAdultChoking || t == TypeInfantChoking
}

// ChecklistItem is a single line of a skill checklist. Order indices are
// advisory: duplicates within a (type, section) pair must sort stably
// rather than error.
type ChecklistItem struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	ChecklistType ChecklistType `json:"checklist_type" gorm:"not null;size:50;index" validate:"required"`
	Section       string        `json:"section" gorm:"not null;size:100" validate:"required,max=100"`
	Text          string        `json:"text" gorm:"not null;type:text" validate:"required,max=1000"`
	Compulsory    bool          `json:"compulsory" gorm:"not null;default:false"`
	OrderIndex    int           `json:"order_index" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChecklistItem) TableName() string {
	return "checklist_items"
}

// ChecklistSection groups items under a section name for display and
// scoring. Section vocabulary is fixed per type by convention only;
// unknown names are grouped as-is.
type ChecklistSection struct {
	Name  string           `json:"name"`
	Items []*ChecklistItem `json:"items"`
}

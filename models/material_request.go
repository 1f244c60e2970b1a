package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaterialRequest is a supervisor's ask for materials. Supervisor, engineer
// and project names are snapshots taken when the request is written and do
// not follow later renames.
type MaterialRequest struct {
	ID                   string                 `gorm:"type:varchar(36);primaryKey" json:"id"`
	RequestNumber        string                 `gorm:"not null;index" json:"request_number"`
	RequestSeq           int                    `gorm:"not null;uniqueIndex:idx_request_supervisor_seq,priority:2" json:"request_seq"`
	SupervisorID         uint                   `gorm:"not null;uniqueIndex:idx_request_supervisor_seq,priority:1" json:"supervisor_id"`
	SupervisorName       string                 `json:"supervisor_name"`
	EngineerID           uint                   `gorm:"not null;index" json:"engineer_id"`
	EngineerName         string                 `json:"engineer_name"`
	ProjectID            uint                   `gorm:"not null;index" json:"project_id"`
	ProjectName          string                 `json:"project_name"`
	Reason               string                 `json:"reason"`
	ExpectedDeliveryDate *time.Time             `json:"expected_delivery_date,omitempty"`
	Status               workflow.RequestStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	Items                []MaterialItem         `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items"`

	RejectionReason       string                             `json:"rejection_reason,omitempty"` // set iff status is a rejected state
	EngineerDecisionAt    *time.Time                         `json:"engineer_decision_at,omitempty"`
	ManagerRejectedByID   *uint                              `json:"manager_rejected_by_id,omitempty"`
	ManagerRejectedByName string                             `json:"manager_rejected_by_name,omitempty"`
	ManagerRejectedAt     *time.Time                         `json:"manager_rejected_at,omitempty"`
	RejectionHistory      datatypes.JSONSlice[RejectionNote] `json:"rejection_history"`
	ResubmitCount         int                                `gorm:"not null;default:0" json:"resubmit_count"`
	ResubmittedAt         *time.Time                         `json:"resubmitted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MaterialRequest) TableName() string {
	return "material_requests"
}

func (r *MaterialRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// ItemKeys returns the reconciliation keys of the requested items in order.
func (r *MaterialRequest) ItemKeys() []workflow.ItemKey {
	keys := make([]workflow.ItemKey, len(r.Items))
	for i, item := range r.Items {
		keys[i] = workflow.ItemKey{Name: item.Name, Quantity: item.Quantity}
	}
	return keys
}

// RejectionNote keeps a manager rejection after the request is resubmitted.
type RejectionNote struct {
	Reason string    `json:"reason"`
	ByID   uint      `json:"by_id"`
	ByName string    `json:"by_name"`
	At     time.Time `json:"at"`
}

// MaterialItem is one requested line. Orders refer to it by Position.
type MaterialItem struct {
	ID             uint                `gorm:"primaryKey" json:"-"`
	RequestID      string              `gorm:"type:varchar(36);not null;index" json:"-"`
	Position       int                 `gorm:"not null" json:"index"`
	Name           string              `gorm:"not null" json:"name"`
	Quantity       int                 `gorm:"not null;check:quantity > 0" json:"quantity"`
	Unit           string              `json:"unit"`
	EstimatedPrice decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"estimated_price"`
}

func (MaterialItem) TableName() string {
	return "material_items"
}

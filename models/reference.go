package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project is a job site that material requests are raised against.
type Project struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Code      string         `gorm:"index" json:"code"`
	Location  string         `json:"location"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string {
	return "projects"
}

// Supplier is a vendor orders are placed with.
type Supplier struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	ContactName string         `json:"contact_name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Supplier) TableName() string {
	return "suppliers"
}

// BudgetCategory groups order spend against an allotted budget.
type BudgetCategory struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"uniqueIndex;not null" json:"name"`
	Code      string          `json:"code"`
	Budget    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"budget"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (BudgetCategory) TableName() string {
	return "budget_categories"
}

// CatalogItem is a canonical priced item definition.
type CatalogItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"uniqueIndex;not null" json:"name"`
	Unit           string          `json:"unit"`
	ReferencePrice decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"reference_price"`
	Aliases        []CatalogAlias  `gorm:"foreignKey:CatalogItemID;constraint:OnDelete:CASCADE" json:"aliases"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (CatalogItem) TableName() string {
	return "catalog_items"
}

// CatalogAlias is an alternate name that resolves to a catalog item.
type CatalogAlias struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CatalogItemID uint      `gorm:"not null;index" json:"catalog_item_id"`
	Alias         string    `gorm:"uniqueIndex;not null" json:"alias"`
	CreatedAt     time.Time `json:"created_at"`
}

func (CatalogAlias) TableName() string {
	return "catalog_aliases"
}

// SystemSetting is a single key/value setting such as the approval limit.
type SystemSetting struct {
	Key         string    `gorm:"column:setting_key;primaryKey;type:varchar(64)" json:"key"`
	Value       string    `gorm:"not null" json:"value"`
	UpdatedByID *uint     `json:"updated_by_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// SequenceCounter holds the last value handed out for one numbering scope.
type SequenceCounter struct {
	Scope string `gorm:"primaryKey;type:varchar(64)"`
	Value int64  `gorm:"not null"`
}

func (SequenceCounter) TableName() string {
	return "sequence_counters"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	// Money is rendered as JSON numbers rather than quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// PurchaseOrder is a commitment to a supplier for some or all items of one
// request. CategoryName and SupplierName are creation-time snapshots.
type PurchaseOrder struct {
	ID                   string               `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderNumber          string               `gorm:"uniqueIndex;not null" json:"order_number"`
	OrderSeq             int64                `gorm:"uniqueIndex;not null" json:"order_seq"`
	RequestID            string               `gorm:"type:varchar(36);not null;index" json:"request_id"`
	RequestNumber        string               `json:"request_number"`
	ManagerID            uint                 `gorm:"not null" json:"manager_id"`
	ManagerName          string               `json:"manager_name"`
	Items                []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount          decimal.Decimal      `gorm:"type:decimal(14,2);not null;default:0" json:"total_amount"`
	CategoryID           *uint                `gorm:"index" json:"category_id,omitempty"`
	CategoryName         string               `json:"category_name,omitempty"`
	SupplierID           *uint                `gorm:"index" json:"supplier_id,omitempty"`
	SupplierName         string               `json:"supplier_name,omitempty"`
	Notes                string               `json:"notes"`
	TermsConditions      string               `json:"terms_conditions"`
	InvoiceNumber        string               `json:"invoice_number,omitempty"`
	ExpectedDeliveryDate *time.Time           `json:"expected_delivery_date,omitempty"`
	Status               workflow.OrderStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	NeedsGMApproval      bool                 `gorm:"not null;default:false" json:"needs_gm_approval"`

	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ApprovedByID      *uint      `json:"approved_by_id,omitempty"`
	GMApprovedAt      *time.Time `json:"gm_approved_at,omitempty"`
	GMApprovedByID    *uint      `json:"gm_approved_by_id,omitempty"`
	GMApprovedByName  string     `json:"gm_approved_by,omitempty"`
	GMRejectionReason string     `json:"gm_rejection_reason,omitempty"`
	GMRejectedByID    *uint      `json:"gm_rejected_by_id,omitempty"`
	GMRejectedByName  string     `json:"gm_rejected_by,omitempty"`
	GMRejectedAt      *time.Time `json:"gm_rejected_at,omitempty"`
	PrintedAt         *time.Time `json:"printed_at,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// ItemKeys returns the reconciliation keys of the ordered items.
func (o *PurchaseOrder) ItemKeys() []workflow.ItemKey {
	keys := make([]workflow.ItemKey, len(o.Items))
	for i, item := range o.Items {
		keys[i] = workflow.ItemKey{Name: item.Name, Quantity: item.Quantity}
	}
	return keys
}

// LineItems returns the delivery view of the ordered items.
func (o *PurchaseOrder) LineItems() []workflow.LineItem {
	lines := make([]workflow.LineItem, len(o.Items))
	for i, item := range o.Items {
		lines[i] = workflow.LineItem{Name: item.Name, Quantity: item.Quantity, Delivered: item.DeliveredQuantity}
	}
	return lines
}

// SumItems recomputes the order total from its items.
func (o *PurchaseOrder) SumItems() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// OrderItem is one ordered line, copied from the request item at Position.
type OrderItem struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderID           string          `gorm:"type:varchar(36);not null;index" json:"-"`
	Position          int             `gorm:"not null" json:"request_item_index"`
	Name              string          `gorm:"not null" json:"name"`
	Quantity          int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"unit_price"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_price"`
	DeliveredQuantity int             `gorm:"not null;default:0" json:"delivered_quantity"`
	CatalogItemID     *uint           `gorm:"index" json:"catalog_item_id,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// DeliveryRecord is an append-only receipt confirmation.
type DeliveryRecord struct {
	ID                    string                            `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID               string                            `gorm:"type:varchar(36);not null;index" json:"order_id"`
	Lines                 datatypes.JSONSlice[DeliveryLine] `json:"items"`
	DeliveryDate          time.Time                         `gorm:"not null" json:"delivery_date"`
	ReceivedByID          uint                              `gorm:"not null" json:"received_by_id"`
	ReceivedBy            string                            `json:"received_by"`
	SupplierReceiptNumber string                            `json:"supplier_receipt_number,omitempty"`
	CreatedAt             time.Time                         `json:"created_at"`
}

func (DeliveryRecord) TableName() string {
	return "delivery_records"
}

func (d *DeliveryRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// DeliveryLine is one received item within a DeliveryRecord.
type DeliveryLine struct {
	Name              string `json:"name"`
	QuantityDelivered int    `json:"quantity_delivered"`
}

// Attachment is a file stored against an order, such as a quote or invoice.
type Attachment struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID      string    `gorm:"type:varchar(36);not null;index" json:"order_id"`
	FileName     string    `gorm:"not null" json:"file_name"`
	StorageKey   string    `gorm:"not null" json:"-"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	UploadedByID uint      `json:"uploaded_by_id"`
	URL          string    `gorm:"-" json:"url,omitempty"` // presigned, computed on read
	CreatedAt    time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

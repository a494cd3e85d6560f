package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReturnStatus string

const (
	ReturnStatusPending          ReturnStatus = "pending"
	ReturnStatusApproved         ReturnStatus = "approved"
	ReturnStatusRejected         ReturnStatus = "rejected"
	ReturnStatusItemReceived     ReturnStatus = "item_received"
	ReturnStatusRefundProcessing ReturnStatus = "refund_processing"
	ReturnStatusRefundCompleted  ReturnStatus = "refund_completed"
)

// DefaultRefundMethod is recorded when a refund is completed without an explicit method.
const DefaultRefundMethod = "Original Payment Method"

// ReturnRequest is the post-delivery return of one order.
type ReturnRequest struct {
	ID             string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID        string              `json:"order_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Order          *Order              `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Reason         string              `json:"reason" gorm:"type:text;not null"`
	Status         ReturnStatus        `json:"status" gorm:"type:varchar(20);not null;default:pending"`
	AdminResponse  string              `json:"admin_response" gorm:"type:text"`
	RefundAmount   decimal.NullDecimal `json:"refund_amount" gorm:"type:decimal(10,2)"`
	RefundDate     *time.Time          `json:"refund_date"`
	RefundMethod   string              `json:"refund_method" gorm:"type:varchar(50)"`
	TrackingNumber string              `json:"tracking_number" gorm:"type:varchar(100)"`
	StockRestored  bool                `json:"stock_restored" gorm:"not null;default:false"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (r *ReturnRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReturnStatusPending
	}
	return nil
}

// EnsureRefundAmount sets the refund amount to the order total when it is still unset.
// Order must be loaded.
func (r *ReturnRequest) EnsureRefundAmount() {
	if r.RefundAmount.Valid || r.Order == nil {
		return
	}
	r.RefundAmount = decimal.NewNullDecimal(r.Order.TotalPrice)
}

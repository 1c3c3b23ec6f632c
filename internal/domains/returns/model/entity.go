package model

import (
	"time"

	"github.com/google/uuid"

	ordermodel "orderflow-backend/internal/domains/order/model"
)

// ===== RETURN STATUS =====

type ReturnStatus string

const (
	StatusRequested       ReturnStatus = "requested"
	StatusApproved        ReturnStatus = "approved"
	StatusRejected        ReturnStatus = "rejected"
	StatusPickupScheduled ReturnStatus = "pickup_scheduled"
	StatusPickedUp        ReturnStatus = "picked_up"
	StatusInTransit       ReturnStatus = "in_transit"
	StatusReceived        ReturnStatus = "received"
	StatusInspected       ReturnStatus = "inspected"
	StatusRefundInitiated ReturnStatus = "refund_initiated"
	StatusCompleted       ReturnStatus = "completed"
	StatusCancelled       ReturnStatus = "cancelled"
)

// returnTransitions is the permitted edge set of the return flow.
var returnTransitions = map[ReturnStatus][]ReturnStatus{
	StatusRequested:       {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:        {StatusPickupScheduled, StatusCancelled},
	StatusPickupScheduled: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:        {StatusInTransit, StatusReceived},
	StatusInTransit:       {StatusReceived},
	StatusReceived:        {StatusInspected},
	StatusInspected:       {StatusRefundInitiated, StatusCancelled},
	StatusRefundInitiated: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to ReturnStatus) bool {
	for _, next := range returnTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCancellable reports whether the customer may still back out.
// Once the courier has the parcel the return runs to completion.
func CustomerCancellable(s ReturnStatus) bool {
	return s == StatusRequested || s == StatusApproved || s == StatusPickupScheduled
}

// IsTerminal reports whether the return admits no further transitions.
func IsTerminal(s ReturnStatus) bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// ===== INSPECTION =====

type InspectionVerdict string

const (
	VerdictAccepted InspectionVerdict = "accepted"
	VerdictRejected InspectionVerdict = "rejected"
	VerdictPartial  InspectionVerdict = "partial"
)

func ValidVerdict(v InspectionVerdict) bool {
	return v == VerdictAccepted || v == VerdictRejected || v == VerdictPartial
}

// InspectionLine records how many units of one line passed inspection.
type InspectionLine struct {
	OrderItemID      uuid.UUID `json:"orderItemId"`
	QuantityAccepted int       `json:"quantityAccepted"`
	Notes            string    `json:"notes,omitempty"`
}

// Inspection is the warehouse verdict on received goods.
type Inspection struct {
	Verdict     InspectionVerdict `json:"verdict"`
	Lines       []InspectionLine  `json:"lines,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	InspectedBy uuid.UUID         `json:"inspectedBy"`
	InspectedAt time.Time         `json:"inspectedAt"`
}

// ===== PICKUP =====

// PickupSlot is the agreed courier window.
type PickupSlot struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Window  string `json:"window"`
	Carrier string `json:"carrier,omitempty"`
}

// ===== ENTITIES =====

// ReturnItem is one line of the return request.
type ReturnItem struct {
	OrderItemID uuid.UUID `json:"orderItemId"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

// ReturnRequest tracks goods flowing back from the customer through
// pickup, inspection and refund.
type ReturnRequest struct {
	ID           uuid.UUID `json:"id"`
	ReturnNumber string    `json:"returnNumber"`
	OrderID      uuid.UUID `json:"orderId"`
	UserID       uuid.UUID `json:"userId"`

	Items  []ReturnItem `json:"items"`
	Reason string       `json:"reason"`

	Status          ReturnStatus `json:"status"`
	RejectionReason *string      `json:"rejectionReason,omitempty"`

	PickupAddress ordermodel.AddressSnapshot `json:"pickupAddress"`
	PickupSlot    *PickupSlot                `json:"pickupSlot,omitempty"`

	Inspection *Inspection `json:"inspection,omitempty"`
	RefundID   *uuid.UUID  `json:"refundId,omitempty"`

	ReceivedAt  *time.Time `json:"receivedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// ===== REQUEST DTOs =====

type ReturnLineRequest struct {
	OrderItemID uuid.UUID `json:"orderItemId"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
}

func (r ReturnLineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

// CreateReturnRequest opens a return for delivered goods.
type CreateReturnRequest struct {
	OrderID uuid.UUID           `json:"orderId"`
	Items   []ReturnLineRequest `json:"items"`
	Reason  string              `json:"reason"`
}

func (r CreateReturnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Items, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

// RejectReturnRequest declines a return with a reason.
type RejectReturnRequest struct {
	Reason string `json:"reason"`
}

func (r RejectReturnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(3, 500)),
	)
}

// SchedulePickupRequest books the courier window.
type SchedulePickupRequest struct {
	Date    string `json:"date"`
	Window  string `json:"window"`
	Carrier string `json:"carrier"`
}

func (r SchedulePickupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&r.Window, validation.Required, validation.Length(2, 50)),
		validation.Field(&r.Carrier, validation.Length(0, 100)),
	)
}

// InspectionLineRequest reports units accepted for one line.
type InspectionLineRequest struct {
	OrderItemID      uuid.UUID `json:"orderItemId"`
	QuantityAccepted int       `json:"quantityAccepted"`
	Notes            string    `json:"notes"`
}

func (r InspectionLineRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.QuantityAccepted, validation.Min(0)),
		validation.Field(&r.Notes, validation.Length(0, 500)),
	)
}

// InspectRequest records the warehouse verdict.
type InspectRequest struct {
	Verdict string                  `json:"verdict"`
	Lines   []InspectionLineRequest `json:"lines"`
	Notes   string                  `json:"notes"`
}

func (r InspectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Verdict, validation.Required, validation.In(
			string(VerdictAccepted),
			string(VerdictRejected),
			string(VerdictPartial),
		)),
		validation.Field(&r.Notes, validation.Length(0, 1000)),
	)
}

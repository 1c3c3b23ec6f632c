package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ===== REQUEST DTOs =====

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (r CancelOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.In(
			string(CancelCustomerRequest),
			string(CancelOutOfStock),
			string(CancelPaymentFailed),
			string(CancelFraudulent),
			string(CancelDuplicateOrder),
			string(CancelOther),
		)),
	)
}

type ShipOrderRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"trackingNumber"`
}

func (r ShipOrderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Carrier, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.TrackingNumber, validation.Required, validation.Length(3, 100)),
	)
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(OrderStatusConfirmed),
			string(OrderStatusProcessing),
			string(OrderStatusShipped),
			string(OrderStatusOutForDelivery),
			string(OrderStatusDelivered),
			string(OrderStatusReturned),
			string(OrderStatusRefunded),
		)),
		validation.Field(&r.Reason, validation.Length(0, 500)),
	)
}

// ===== RESPONSE DTOs =====

// OrderResponse is the order with its lines.
type OrderResponse struct {
	Order *Order      `json:"order"`
	Items []OrderItem `json:"items"`
}

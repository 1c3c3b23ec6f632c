package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	ordermodel "orderflow-backend/internal/domains/order/model"
)

// ===== REQUESTS =====

type AddressInput struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	Landmark string `json:"landmark"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
	Country  string `json:"country"`
}

func (a AddressInput) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.FullName, validation.Required, validation.Length(2, 100)),
		validation.Field(&a.Phone, validation.Required, validation.Length(8, 15)),
		validation.Field(&a.Line1, validation.Required, validation.Length(3, 200)),
		validation.Field(&a.City, validation.Required),
		validation.Field(&a.State, validation.Required),
		validation.Field(&a.Pincode, validation.Required, validation.Length(4, 10)),
		validation.Field(&a.Country, validation.Required),
	)
}

// Snapshot converts the input into an immutable address copy.
func (a AddressInput) Snapshot() ordermodel.AddressSnapshot {
	return ordermodel.AddressSnapshot{
		FullName: a.FullName,
		Phone:    a.Phone,
		Line1:    a.Line1,
		Line2:    a.Line2,
		Landmark: a.Landmark,
		City:     a.City,
		State:    a.State,
		Pincode:  a.Pincode,
		Country:  a.Country,
	}
}

// PaymentDetailsInput carries optional instrument details. Only the
// masked form ever reaches storage; raw card numbers are dropped after
// the last 4 digits are extracted.
type PaymentDetailsInput struct {
	UPIHandle   string `json:"upiHandle,omitempty"`
	CardNumber  string `json:"cardNumber,omitempty"`
	CardNetwork string `json:"cardNetwork,omitempty"`
	BankName    string `json:"bankName,omitempty"`
}

type InitiateRequest struct {
	ShippingAddress AddressInput         `json:"shippingAddress"`
	BillingAddress  *AddressInput        `json:"billingAddress,omitempty"`
	ShippingMethod  string               `json:"shippingMethod"`
	PaymentMethod   string               `json:"paymentMethod"`
	PaymentDetails  *PaymentDetailsInput `json:"paymentDetails,omitempty"`
}

func (r InitiateRequest) Validate() error {
	if err := r.ShippingAddress.Validate(); err != nil {
		return err
	}
	if r.BillingAddress != nil {
		if err := r.BillingAddress.Validate(); err != nil {
			return err
		}
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.ShippingMethod, validation.Required, validation.In("standard", "express")),
		validation.Field(&r.PaymentMethod, validation.Required, validation.In("upi", "card", "netbanking", "wallet")),
	)
}

// ===== RESPONSES =====

type InitiateResponse struct {
	SessionID string                    `json:"sessionId"`
	ExpiresAt string                    `json:"expiresAt"`
	Totals    ordermodel.TotalsSnapshot `json:"totals"`
	Warnings  []string                  `json:"warnings,omitempty"`
}

type CompleteResponse struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	GatewayOrderID string `json:"gatewayOrderId"`
	GatewayKeyID   string `json:"gatewayKeyId"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

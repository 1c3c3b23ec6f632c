package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===== REQUESTS =====

type AddItemRequest struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID uuid.UUID  `json:"variantId"`
	BundleID  *uuid.UUID `json:"bundleId,omitempty"`
	Quantity  int        `json:"quantity"`
}

func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.VariantID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(MaxQuantityPerLine)),
	)
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (r UpdateQuantityRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quantity, validation.Required, validation.Min(1), validation.Max(MaxQuantityPerLine)),
	)
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

func (r ApplyCouponRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(3, 32)),
	)
}

// MigrateCartRequest re-owns a guest cart after login.
// Called service-to-service by the auth service.
type MigrateCartRequest struct {
	GuestToken string `json:"guestSessionId"`
	UserID     string `json:"userId"`
}

func (r MigrateCartRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.GuestToken, validation.Required, is.UUID),
		validation.Field(&r.UserID, validation.Required, is.UUID),
	)
}

func notNilUUID(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return validation.NewError("validation_uuid", "must be a valid UUID")
	}
	return nil
}

// ===== RESPONSES =====

type CartResponse struct {
	Cart     *Cart                 `json:"cart"`
	Items    []CartItem            `json:"items"`
	Warnings []RevalidationWarning `json:"warnings,omitempty"`
}

type MergeResult struct {
	CartID       uuid.UUID       `json:"cartId"`
	MergedLines  int             `json:"mergedLines"`
	MovedLines   int             `json:"movedLines"`
	Reparented   bool            `json:"reparented"`
	GrandTotal   decimal.Decimal `json:"grandTotal"`
	ItemCount    int             `json:"itemCount"`
	AlreadyEmpty bool            `json:"alreadyEmpty"`
}

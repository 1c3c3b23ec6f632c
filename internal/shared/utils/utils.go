package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// UnmarshalTask decodes an asynq task payload into dest.
func UnmarshalTask(t *asynq.Task, dest interface{}) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", t.Type(), err)
	}
	return nil
}

func ParseStringToUUID(s string) uuid.UUID {
	uid, err := uuid.Parse(s)
	if err != nil || s == "" {
		return uuid.Nil
	}
	return uid
}

func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}

// RoundMoney rounds half-up to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MaskUPI masks a UPI handle for safe persistence: keep the first 2 and
// last 1 characters of the local part, domain preserved.
// "ramesh@okicici" -> "ra***h@okicici".
func MaskUPI(vpa string) string {
	at := strings.LastIndex(vpa, "@")
	if at <= 0 {
		return "***"
	}

	local, domain := vpa[:at], vpa[at:]
	if len(local) <= 3 {
		return strings.Repeat("*", len(local)) + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-3) + local[len(local)-1:] + domain
}

// CardLast4 keeps only the last 4 digits of a card number.
func CardLast4(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)

	if len(digits) < 4 {
		return ""
	}
	return digits[len(digits)-4:]
}

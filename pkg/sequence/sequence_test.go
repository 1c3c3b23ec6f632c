package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "ORD-2026-000001", Format(KindOrder, 2026, 1))
	assert.Equal(t, "REF-2026-000042", Format(KindRefund, 2026, 42))
	assert.Equal(t, "RET-2026-123456", Format(KindReturn, 2026, 123456))
	assert.Equal(t, "INV-2026-1234567", Format(KindInvoice, 2026, 1234567))
}

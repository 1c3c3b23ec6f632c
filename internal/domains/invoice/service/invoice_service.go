package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orderflow-backend/internal/domains/invoice/model"
	"orderflow-backend/internal/domains/invoice/renderer"
	"orderflow-backend/internal/domains/invoice/repository"
	ordermodel "orderflow-backend/internal/domains/order/model"
	"orderflow-backend/internal/infrastructure/storage"
	"orderflow-backend/pkg/logger"
	"orderflow-backend/pkg/sequence"
)

// GeneratedBySystem marks invoices produced by the scheduled worker.
const GeneratedBySystem = "system"

const downloadURLExpiry = 15 * time.Minute

// OrderAccess is the slice of order behavior invoicing needs.
// Implemented by the order service.
type OrderAccess interface {
	GetOrder(ctx context.Context, orderID uuid.UUID, userID *uuid.UUID) (*ordermodel.Order, []ordermodel.OrderItem, error)
}

// InvoiceService issues and stores tax invoices for delivered orders.
type InvoiceService struct {
	repo      repository.RepositoryInterface
	orders    OrderAccess
	renderer  renderer.Renderer
	storage   *storage.MinIOStorage
	sequences *sequence.Generator
}

func NewInvoiceService(
	repo repository.RepositoryInterface,
	orders OrderAccess,
	rend renderer.Renderer,
	store *storage.MinIOStorage,
	sequences *sequence.Generator,
) *InvoiceService {
	return &InvoiceService{
		repo:      repo,
		orders:    orders,
		renderer:  rend,
		storage:   store,
		sequences: sequences,
	}
}

// ===== GENERATION =====

// Generate issues the invoice for a delivered order. A second call
// for the same order returns the existing invoice untouched; pass
// regenerate to re-render the file under the same invoice number.
func (s *InvoiceService) Generate(ctx context.Context, orderID uuid.UUID, generatedBy string, regenerate bool) (*model.Invoice, error) {
	existing, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil && !regenerate {
		return existing, nil
	}

	order, items, err := s.orders.GetOrder(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	if order.Status != ordermodel.OrderStatusDelivered && order.Status != ordermodel.OrderStatusReturned && order.Status != ordermodel.OrderStatusRefunded {
		return nil, model.NewInvoiceError(model.ErrCodeNotEligible,
			fmt.Sprintf("Order in status %s cannot be invoiced", order.Status),
			model.ErrOrderNotEligible)
	}

	lines := buildLines(items)

	invoice := existing
	if invoice == nil {
		invoiceNumber, err := s.sequences.Next(ctx, sequence.KindInvoice)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invoice number: %w", err)
		}
		invoice = &model.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: invoiceNumber,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			GeneratedAt:   time.Now(),
		}
	}
	invoice.Lines = lines
	invoice.BillingAddress = order.BillingAddress
	invoice.Totals = order.Totals
	invoice.GeneratedBy = generatedBy

	rendered, err := s.renderer.Render(invoice)
	if err != nil {
		return nil, model.NewInvoiceError(model.ErrCodeRenderFailed,
			"Invoice could not be rendered", fmt.Errorf("%w: %v", model.ErrRenderFailed, err))
	}

	key := fmt.Sprintf("invoices/%d/%s.pdf", invoice.GeneratedAt.Year(), invoice.InvoiceNumber)
	if _, err := s.storage.Upload(ctx, key, rendered, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store invoice: %w", err)
	}
	invoice.StorageKey = key

	if existing == nil {
		if err := s.repo.Create(ctx, invoice); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.UpdateArtifact(ctx, invoice); err != nil {
			return nil, err
		}
	}

	logger.Info("Invoice generated", map[string]interface{}{
		"invoice_id":     invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"order_id":       order.ID,
		"regenerated":    existing != nil,
	})
	return invoice, nil
}

func buildLines(items []ordermodel.OrderItem) []model.InvoiceLine {
	lines := make([]model.InvoiceLine, 0, len(items))
	for i := range items {
		item := &items[i]
		lines = append(lines, model.InvoiceLine{
			Description: item.Name,
			HSNCode:     item.HSNCode,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.LineDiscount,
			TaxAmount:   item.LineTax,
			LineTotal:   item.LineTotal,
		})
	}
	return lines
}

// ===== READS =====

func (s *InvoiceService) GetByOrder(ctx context.Context, userID *uuid.UUID, orderID uuid.UUID) (*model.Invoice, error) {
	if _, _, err := s.orders.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	invoice, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, model.ErrOrderNotInvoiced
	}
	return invoice, nil
}

func (s *InvoiceService) ListUserInvoices(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Invoice, int, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

// DownloadURL returns a short-lived presigned link to the rendered file.
func (s *InvoiceService) DownloadURL(ctx context.Context, userID *uuid.UUID, orderID uuid.UUID) (string, error) {
	invoice, err := s.GetByOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	url, err := s.storage.PresignedURL(ctx, invoice.StorageKey, downloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to presign invoice url: %w", err)
	}
	return url, nil
}

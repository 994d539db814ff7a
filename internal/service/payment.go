package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var paymentTracer = otel.Tracer("service/payment")

// isoMillis matches the browser's Date.toISOString output.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// BillSource returns the bill currently shown to a user.
type BillSource interface {
	CurrentBill(ctx context.Context, user *domain.User) (domain.Bill, error)
}

// PaymentService simulates paying the current bill. There is no gateway;
// a completed record is appended to the user's payments.
type PaymentService struct {
	bills     BillSource
	store     port.PaymentStore
	delay     time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService creates a new payment service. delay simulates gateway
// latency and may be zero.
func NewPaymentService(bills BillSource, store port.PaymentStore, delay time.Duration, metrics *observability.Metrics, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		bills:     bills,
		store:     store,
		delay:     delay,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// ============================================================
// Pay — POST /v1/payments
// ============================================================

// Pay charges the current rounded bill. When the client sends the amount it
// displayed, it must equal that bill.
func (s *PaymentService) Pay(ctx context.Context, user *domain.User, req *domain.PaymentRequest) (*domain.PaymentResponse, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.Pay")
	defer span.End()
	span.SetAttributes(attribute.String("uid", user.ID))

	bill, err := s.bills.CurrentBill(ctx, user)
	if err != nil {
		s.logger.Error("payment: bill lookup failed", zap.String("uid", user.ID), zap.Error(err))
		return nil, err
	}
	charge := meter.ChargeAmount(bill)
	if !charge.IsPositive() {
		s.metrics.RecordPayment("rejected", 0)
		return nil, &domain.ErrValidation{Field: "amount", Message: domain.MsgNoAmountToPay}
	}

	if shown := strings.TrimSpace(req.Amount); shown != "" {
		displayed, err := decimal.NewFromString(shown)
		if err != nil || !displayed.IsPositive() {
			s.metrics.RecordPayment("rejected", 0)
			return nil, &domain.ErrValidation{Field: "amount", Message: domain.MsgNoAmountToPay}
		}
		if !displayed.Equal(charge) {
			s.metrics.RecordPayment("rejected", 0)
			return nil, &domain.ErrConflict{Message: fmt.Sprintf(
				"Your bill is now %s%s. Please review the amount and try again.",
				domain.CurrencySymbol, bill.Amount,
			)}
		}
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	now := s.now()
	amount := charge.InexactFloat64()
	p := &domain.Payment{
		UserID:        user.ID,
		UserEmail:     user.Email,
		Amount:        amount,
		Currency:      domain.CurrencyCode,
		Timestamp:     now.UnixMilli(),
		Date:          now.UTC().Format(isoMillis),
		Status:        domain.PaymentStatusCompleted,
		PaymentMethod: domain.PaymentMethodCard,
		TransactionID: meter.TransactionID(now),
		Description:   domain.PaymentDescription,
	}

	id, err := s.store.AppendPayment(ctx, user.ID, p)
	if err != nil {
		s.metrics.IncrStoreError("append_payment")
		s.logger.Error("payment append failed", zap.String("uid", user.ID), zap.Error(err))
		return nil, fmt.Errorf("append payment: %w", err)
	}
	p.ID = id

	s.metrics.RecordPayment(domain.PaymentStatusCompleted, amount)
	s.logger.Info("payment completed",
		zap.String("uid", user.ID),
		zap.String("transaction_id", p.TransactionID),
		zap.String("amount", bill.Amount),
	)

	return &domain.PaymentResponse{
		Payment: *p,
		Message: fmt.Sprintf("Payment of %s%s processed successfully! Transaction ID: %s",
			domain.CurrencySymbol, bill.Amount, p.TransactionID),
		Bill: meter.ZeroBill(),
	}, nil
}

// ============================================================
// List — GET /v1/payments
// ============================================================

// List returns the user's payments oldest first, never nil.
func (s *PaymentService) List(ctx context.Context, uid string) ([]domain.Payment, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.List")
	defer span.End()

	payments, err := s.store.ListPayments(ctx, uid)
	if err != nil {
		s.metrics.IncrStoreError("list_payments")
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

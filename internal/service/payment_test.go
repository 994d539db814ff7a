package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
	"github.com/boddenberg/electritrack-bfa-go/internal/meter"
	"github.com/boddenberg/electritrack-bfa-go/internal/service"

	"go.uber.org/zap"
)

type fixedBill struct {
	bill domain.Bill
	err  error
}

func (f fixedBill) CurrentBill(_ context.Context, _ *domain.User) (domain.Bill, error) {
	return f.bill, f.err
}

func billFor(kwh, price float64) fixedBill {
	return fixedBill{bill: meter.ComputeBill(kwh, price)}
}

func TestPay_ChargesRoundedBill(t *testing.T) {
	store := &mockPayments{}
	metrics := observability.NewMetrics()
	svc := service.NewPaymentService(billFor(123.456, 12.5), store, 0, metrics, zap.NewNop())

	resp, err := svc.Pay(context.Background(), testUser, &domain.PaymentRequest{Amount: "1543.20"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	p := resp.Payment
	if p.Amount != 1543.2 || p.Currency != "PHP" || p.Status != "completed" || p.PaymentMethod != "credit_card" {
		t.Errorf("unexpected payment %+v", p)
	}
	if p.Description != "Electricity bill payment (Raw Amount)" || p.UserEmail != testUser.Email {
		t.Errorf("unexpected payment %+v", p)
	}
	if p.ID != "push-key-1" || !strings.HasPrefix(p.TransactionID, "TXN") {
		t.Errorf("unexpected ids %s %s", p.ID, p.TransactionID)
	}
	wantMsg := "Payment of ₱1543.20 processed successfully! Transaction ID: " + p.TransactionID
	if resp.Message != wantMsg {
		t.Errorf("message = %q, want %q", resp.Message, wantMsg)
	}
	if resp.Bill.Amount != "0.00" {
		t.Errorf("expected bill reset, got %s", resp.Bill.Amount)
	}
	if len(store.appended) != 1 {
		t.Fatalf("expected 1 appended payment, got %d", len(store.appended))
	}
	if got := metrics.GetUsageSnapshot().PaymentsCompleted; got != 1 {
		t.Errorf("expected 1 completed payment counted, got %d", got)
	}
}

func TestPay_WithoutDisplayedAmount(t *testing.T) {
	svc := service.NewPaymentService(billFor(10, 12.5), &mockPayments{}, 0, observability.NewMetrics(), zap.NewNop())

	resp, err := svc.Pay(context.Background(), testUser, &domain.PaymentRequest{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Payment.Amount != 125 {
		t.Errorf("amount = %v, want 125", resp.Payment.Amount)
	}
}

func TestPay_AmountMismatchConflicts(t *testing.T) {
	store := &mockPayments{}
	svc := service.NewPaymentService(billFor(123.456, 12.5), store, 0, observability.NewMetrics(), zap.NewNop())

	_, err := svc.Pay(context.Background(), testUser, &domain.PaymentRequest{Amount: "1543.00"})

	var ce *domain.ErrConflict
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(ce.Message, "₱1543.20") {
		t.Errorf("conflict should show the current bill, got %q", ce.Message)
	}
	if len(store.appended) != 0 {
		t.Error("rejected payment must not be stored")
	}
}

func TestPay_NoAmount(t *testing.T) {
	tests := map[string]struct {
		bill fixedBill
		req  domain.PaymentRequest
	}{
		"zero bill":      {fixedBill{bill: meter.ZeroBill()}, domain.PaymentRequest{}},
		"zero reading":   {billFor(0, 12.5), domain.PaymentRequest{Amount: "0.00"}},
		"garbage amount": {billFor(10, 12.5), domain.PaymentRequest{Amount: "abc"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			metrics := observability.NewMetrics()
			svc := service.NewPaymentService(tt.bill, &mockPayments{}, 0, metrics, zap.NewNop())

			_, err := svc.Pay(context.Background(), testUser, &tt.req)

			var ve *domain.ErrValidation
			if !errors.As(err, &ve) || ve.Message != domain.MsgNoAmountToPay {
				t.Errorf("got %v, want %q", err, domain.MsgNoAmountToPay)
			}
			if got := metrics.GetUsageSnapshot().PaymentsRejected; got != 1 {
				t.Errorf("expected 1 rejection counted, got %d", got)
			}
		})
	}
}

func TestPay_StoreError(t *testing.T) {
	svc := service.NewPaymentService(billFor(10, 12.5), &mockPayments{err: errors.New("write denied")}, 0, observability.NewMetrics(), zap.NewNop())

	if _, err := svc.Pay(context.Background(), testUser, &domain.PaymentRequest{}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPay_BillLookupError(t *testing.T) {
	store := &mockPayments{}
	lookup := &domain.ErrExternalService{Service: "devices", Err: errors.New("unreachable")}
	svc := service.NewPaymentService(fixedBill{err: lookup}, store, 0, observability.NewMetrics(), zap.NewNop())

	_, err := svc.Pay(context.Background(), testUser, &domain.PaymentRequest{})

	var ee *domain.ErrExternalService
	if !errors.As(err, &ee) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Error("payment must not be stored without a bill")
	}
}

func TestPay_DelayHonoursCancellation(t *testing.T) {
	store := &mockPayments{}
	svc := service.NewPaymentService(billFor(10, 12.5), store, 1<<40, observability.NewMetrics(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Pay(ctx, testUser, &domain.PaymentRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Error("cancelled payment must not be stored")
	}
}

func TestPaymentList_EmptyIsNotNil(t *testing.T) {
	svc := service.NewPaymentService(billFor(0, 0), &mockPayments{}, 0, observability.NewMetrics(), zap.NewNop())

	got, err := svc.List(context.Background(), "uid-1")
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v %v", got, err)
	}
}

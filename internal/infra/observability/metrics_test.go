package observability_test

import (
	"testing"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
	"github.com/boddenberg/electritrack-bfa-go/internal/infra/observability"
)

func TestMetrics_UsageSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrUsageComputation("ok")
	m.IncrUsageComputation("ok")
	m.IncrUsageComputation("failed")
	m.IncrDeviceResolution(string(domain.ResolutionConnected))
	m.IncrDeviceResolution(string(domain.ResolutionNoDevice))
	m.RecordPayment(domain.PaymentStatusCompleted, 1543.20)
	m.RecordPayment("rejected", 0)
	m.IncrStoreError("get")
	m.IncrStoreError("set")
	m.IncrCacheHit("profile")
	m.IncrCacheMiss("profile")
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	snap := m.GetUsageSnapshot()

	if snap.UsageComputations != 3 || snap.UsageFailures != 1 {
		t.Errorf("expected 3 computations / 1 failure, got %d / %d", snap.UsageComputations, snap.UsageFailures)
	}
	if snap.DevicesMatched != 1 || snap.DevicesUnmatched != 1 {
		t.Errorf("unexpected resolution counts: %+v", snap)
	}
	if snap.PaymentsCompleted != 1 || snap.PaymentsRejected != 1 {
		t.Errorf("unexpected payment counts: %+v", snap)
	}
	if snap.AmountCollectedPHP != 1543.20 {
		t.Errorf("expected 1543.20 collected, got %f", snap.AmountCollectedPHP)
	}
	if snap.StoreErrors != 2 {
		t.Errorf("expected 2 store errors, got %d", snap.StoreErrors)
	}
	if snap.ActiveSubscriptions != 1 {
		t.Errorf("expected 1 active subscription, got %d", snap.ActiveSubscriptions)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected 0.5 cache hit rate, got %f", snap.CacheHitRate)
	}
}

func TestMetrics_NewMetricsTwice(t *testing.T) {
	// Private registries must not collide.
	_ = observability.NewMetrics()
	_ = observability.NewMetrics()
}

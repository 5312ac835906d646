package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberline/commerce-pulse/internal/domain"
	"github.com/emberline/commerce-pulse/internal/syncer"
)

type noopStore struct{}

func (noopStore) UpsertShopifyMetrics(context.Context, domain.ShopifyDailyMetrics) error { return nil }
func (noopStore) ReplaceTopProducts(context.Context, string, []domain.TopProduct) error  { return nil }
func (noopStore) UpsertAdMetrics(context.Context, domain.AdDailyMetrics) error           { return nil }
func (noopStore) UpsertKlaviyoMetrics(context.Context, domain.KlaviyoDailyMetrics) error { return nil }
func (noopStore) UpsertDailySignups(context.Context, string, int) error                  { return nil }
func (noopStore) UpsertInstagramMetrics(context.Context, domain.InstagramDailyMetrics) error {
	return nil
}
func (noopStore) KlaviyoMetricsRange(context.Context, string, string) ([]domain.KlaviyoDailyMetrics, error) {
	return nil, nil
}

func testRunner() *syncer.Runner {
	return syncer.New(noopStore{}, nil, nil, nil, nil, 30, 0)
}

func TestNewAcceptsStandardSpec(t *testing.T) {
	s, err := New(testRunner(), nil, "*/30 * * * *")
	require.NoError(t, err)
	require.NotNil(t, s)

	s.Start()
	s.Stop()
}

func TestNewRejectsMalformedSpec(t *testing.T) {
	_, err := New(testRunner(), nil, "every half hour")
	assert.Error(t, err)
}

func TestStopWaitsForIdleCron(t *testing.T) {
	s, err := New(testRunner(), nil, "0 3 * * *")
	require.NoError(t, err)

	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return for an idle scheduler")
	}
}

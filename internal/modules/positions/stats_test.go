package positions

import (
	"testing"
	"time"

	"github.com/aristath/ipotracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBatch_CollectsFailures(t *testing.T) {
	h := newHarness(t)

	subscribed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	result, err := h.svc.CreateBatch(BatchInput{
		StockName:  "Acme Holdings",
		StockCode:  "09999",
		IssuePrice: d("5.00"),
		Entries: []BatchEntry{
			{AccountID: "default", SubscriptionHands: 2, PackageFee: d("100"), SubscribedAt: subscribed},
			{AccountID: "futu", SubscriptionHands: 0},
			{AccountID: "missing", SubscriptionHands: 1},
			{AccountID: "default", SubscriptionHands: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "default", result.Created[0].AccountID)
	assert.True(t, result.Created[0].CreateTime.Equal(subscribed))

	failed := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failed = append(failed, f.AccountID)
		assert.NotEmpty(t, f.Error)
	}
	assert.Equal(t, []string{"futu", "missing", "default"}, failed)

	stored, err := h.svc.List(ListFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCreateBatch_RejectsEmptyInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.CreateBatch(BatchInput{IssuePrice: d("5"), Entries: []BatchEntry{{AccountID: "default", SubscriptionHands: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.CreateBatch(BatchInput{StockName: "Acme", IssuePrice: d("5")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.deposit(t, "default", "10000")

	sold := h.create(t, "default", 5, "5.00", "100")
	_, err := h.svc.RecordAllotment(sold.ID, 500, time.Time{})
	require.NoError(t, err)
	_, err = h.svc.RecordSale(sold.ID, d("6.00"), 500, time.Time{})
	require.NoError(t, err)

	lost := h.create(t, "default", 5, "5.00", "100")
	_, err = h.svc.SetStatus(lost.ID, domain.PositionFinished)
	require.NoError(t, err)

	h.create(t, "futu", 5, "5.00", "0")

	stats, err := h.svc.Stats(StatsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Ongoing)
	assert.Equal(t, 1, stats.Finished)
	assert.Equal(t, 2, stats.Realised)
	assert.Equal(t, "193.53", stats.TotalProfit.StringFixed(2))
	assert.Equal(t, "33.33", stats.WinningRate.StringFixed(2))
	assert.InDelta(t, 96.765, stats.MeanProfit, 1e-9)
	assert.InDelta(t, 278.2677, stats.ProfitStdDev, 1e-3)

	finished, err := h.svc.Stats(StatsFilter{Status: domain.PositionFinished})
	require.NoError(t, err)
	assert.Equal(t, 1, finished.Total)
	assert.Equal(t, -100.0, finished.MeanProfit)
	assert.Zero(t, finished.ProfitStdDev)

	futu, err := h.svc.Stats(StatsFilter{AccountID: "futu"})
	require.NoError(t, err)
	assert.Equal(t, 1, futu.Total)
	assert.Zero(t, futu.Realised)
	assert.True(t, futu.TotalProfit.IsZero())
}

func TestStats_DateRangeIsInclusive(t *testing.T) {
	h := newHarness(t)

	for _, day := range []int{1, 2, 3} {
		_, err := h.svc.CreatePosition(CreateInput{
			AccountID:         "default",
			StockName:         "Acme",
			IssuePrice:        d("5"),
			SubscriptionHands: 1,
			SubscribedAt:      time.Date(2024, 3, day, 15, 30, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	stats, err := h.svc.Stats(StatsFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)

	to = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	stats, err = h.svc.Stats(StatsFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

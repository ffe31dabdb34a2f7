package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

// slowChecker 等待 ctx 结束
type slowChecker struct{}

func (slowChecker) Name() string { return "slow" }

func (slowChecker) Check(ctx context.Context) CheckResult {
	<-ctx.Done()
	return CheckResult{Status: StatusUnhealthy, Message: ctx.Err().Error()}
}

func TestAggregator(t *testing.T) {
	t.Run("全部健康", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"db", StatusHealthy}, &mockChecker{"device", StatusHealthy})
		assert.Equal(t, StatusHealthy, agg.OverallStatus(context.Background()))
		assert.True(t, agg.Ready(context.Background()))
	})

	t.Run("部分降级仍就绪", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"db", StatusHealthy}, &mockChecker{"redis", StatusDegraded})
		assert.Equal(t, StatusDegraded, agg.OverallStatus(context.Background()))
		assert.True(t, agg.Ready(context.Background()))
	})

	t.Run("任一不健康", func(t *testing.T) {
		agg := NewAggregator(
			&mockChecker{"redis", StatusDegraded},
			&mockChecker{"device", StatusUnhealthy},
		)
		assert.Equal(t, StatusUnhealthy, agg.OverallStatus(context.Background()))
		assert.False(t, agg.Ready(context.Background()))
	})

	t.Run("动态添加检查器", func(t *testing.T) {
		agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
		agg.AddChecker(&mockChecker{"added", StatusHealthy})
		assert.Len(t, agg.CheckAll(context.Background()), 2)
	})

	t.Run("单个检查超时", func(t *testing.T) {
		agg := NewAggregator(slowChecker{}, &mockChecker{"db", StatusHealthy})
		agg.timeout = 10 * time.Millisecond
		report := agg.Report(context.Background())
		assert.Equal(t, StatusUnhealthy, report.Status)
		assert.Equal(t, StatusHealthy, report.Checks["db"].Status)
	})

	t.Run("空聚合器", func(t *testing.T) {
		agg := NewAggregator()
		assert.True(t, agg.Alive())
		assert.Equal(t, StatusHealthy, agg.OverallStatus(context.Background()))
	})
}

func TestReadiness(t *testing.T) {
	r := NewReadiness("device", "database")
	assert.False(t, r.Ready())
	assert.ElementsMatch(t, []string{"device", "database"}, r.Pending())

	r.Set("device", true)
	r.Set("database", true)
	assert.True(t, r.Ready())

	r.Set("redis", false)
	assert.False(t, r.Ready())
	assert.Equal(t, []string{"redis"}, r.Pending())
}

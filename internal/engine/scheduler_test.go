package engine

import (
	"testing"
	"time"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	notifyMocks "github.com/donaldgifford/slo-reporter/internal/notify/mocks"
	thanosMocks "github.com/donaldgifford/slo-reporter/internal/thanos/mocks"
	"github.com/donaldgifford/slo-reporter/pkg/logger"
)

func newSchedulerTestEngine(t *testing.T) (*Engine, *thanosMocks.MockQuerier) {
	t.Helper()
	mq := thanosMocks.NewMockQuerier(t)
	eng := NewEngine(mq, testRegistry(t, "kebechet"), nil, nil, notifyMocks.NewMockMailer(t),
		WithLogger(logger.Discard()),
		WithStoreOnly(true),
	)
	return eng, mq
}

func TestNewScheduler_RegistersCronEntry(t *testing.T) {
	t.Parallel()

	eng, _ := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, "0 7 * * *", logger.Discard())
	require.NoError(t, err)

	assert.Len(t, sched.Entries(), 1)
	assert.NotZero(t, sched.entryID)
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	t.Parallel()

	eng, _ := newSchedulerTestEngine(t)

	_, err := NewScheduler(eng, "every tuesday", logger.Discard())
	require.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	eng, _ := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, "0 7 * * *", logger.Discard())
	require.NoError(t, err)

	sched.Start()
	ctx := sched.Stop()
	<-ctx.Done()
}

func TestScheduler_SyncNextRunTimestamp(t *testing.T) {
	t.Parallel()

	eng, _ := newSchedulerTestEngine(t)

	sched, err := NewScheduler(eng, "@every 1h", logger.Discard())
	require.NoError(t, err)

	// Start so that cron populates Next times.
	sched.Start()
	defer sched.Stop()

	sched.SyncNextRunTimestamp()
	assert.Greater(t, ptestutil.ToFloat64(metrics.NextRunTimestamp), float64(time.Now().Unix()))
}

func TestScheduler_RunInvokesEngine(t *testing.T) {
	t.Parallel()

	eng, mq := newSchedulerTestEngine(t)
	mq.EXPECT().Ping(mock.Anything).Return(nil).Once()
	mq.EXPECT().QueryRange(mock.Anything, mock.Anything, mock.Anything).Return([]float64{3}, nil).Once()

	sched, err := NewScheduler(eng, "0 7 * * *", logger.Discard())
	require.NoError(t, err)

	sched.run()

	require.NotNil(t, eng.Latest())
	assert.Equal(t, DeliveryNone, eng.Latest().Delivery)
}

func TestScheduler_RunSkipsWhenBusy(t *testing.T) {
	t.Parallel()

	eng, _ := newSchedulerTestEngine(t)
	sched, err := NewScheduler(eng, "0 7 * * *", logger.Discard())
	require.NoError(t, err)

	eng.running.Lock()
	defer eng.running.Unlock()

	// No querier expectations: a run attempt would fail the test.
	sched.run()
	assert.Nil(t, eng.Latest())
}

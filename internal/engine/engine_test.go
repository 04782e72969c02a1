package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/slo-reporter/internal/metrics"
	"github.com/donaldgifford/slo-reporter/internal/notify"
	notifyMocks "github.com/donaldgifford/slo-reporter/internal/notify/mocks"
	"github.com/donaldgifford/slo-reporter/internal/sli"
	"github.com/donaldgifford/slo-reporter/internal/store"
	storeMocks "github.com/donaldgifford/slo-reporter/internal/store/mocks"
	thanosMocks "github.com/donaldgifford/slo-reporter/internal/thanos/mocks"
	"github.com/donaldgifford/slo-reporter/pkg/logger"
	domain "github.com/donaldgifford/slo-reporter/pkg/types"
)

// monday is a send day; the prior period ends on 2024-03-04.
var monday = time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testRegistry(t *testing.T, names ...string) sli.Registry {
	t.Helper()
	reg, err := sli.NewRegistry(sli.Params{
		Environment:     "stage",
		Instance:        "exporter:80",
		UserAPIInstance: "user-api:80",
		WindowDays:      7,
		LearningRate:    time.Hour,
		LatencyBuckets:  []string{"+Inf"},
		AdviserDays:     3,
	}).Select(names)
	require.NoError(t, err)
	return reg
}

// exprOf returns the expression of the named query of the single class in reg.
func exprOf(t *testing.T, reg sli.Registry, class, query string) string {
	t.Helper()
	ind, ok := reg.Lookup(class)
	require.True(t, ok)
	for _, q := range ind.Queries() {
		if q.Name == query {
			return q.Expr
		}
	}
	t.Fatalf("query %s not found in %s", query, class)
	return ""
}

// answer serves canned samples per expression. Unknown expressions fail.
func answer(mq *thanosMocks.MockQuerier, byExpr map[string][]float64, failing ...string) {
	respond := func(expr string) ([]float64, error) {
		for _, f := range failing {
			if expr == f {
				return nil, errors.New("connection reset by peer")
			}
		}
		samples, ok := byExpr[expr]
		if !ok {
			return nil, errors.New("unexpected expression " + expr)
		}
		return samples, nil
	}

	mq.EXPECT().Ping(mock.Anything).Return(nil).Maybe()
	mq.EXPECT().
		QueryRange(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, expr string, _ domain.Window) ([]float64, error) {
			return respond(expr)
		}).
		Maybe()
	mq.EXPECT().
		Query(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, expr string, _ time.Time) ([]float64, error) {
			return respond(expr)
		}).
		Maybe()
}

// recordingPublisher keeps every published sample.
type recordingPublisher struct {
	mu      sync.Mutex
	calls   int
	samples []domain.Sample
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, samples []domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.samples = append(r.samples, samples...)
	return r.err
}

// memoryStore is an in-memory ObjectStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memoryStore) row(t *testing.T, ind sli.Indicator, date time.Time) *domain.Row {
	t.Helper()
	data, err := m.Get(context.Background(), store.Key(ind.Name(), date))
	require.NoError(t, err)
	row, err := store.DecodeRow(ind.Name(), ind.Columns(), data)
	require.NoError(t, err)
	return row
}

func TestNewEngine_Defaults(t *testing.T) {
	t.Parallel()

	eng := NewEngine(thanosMocks.NewMockQuerier(t), nil, nil, nil, notifyMocks.NewMockMailer(t))
	assert.Equal(t, 7, eng.days)
	assert.Equal(t, time.Hour, eng.step)
	assert.NotNil(t, eng.log)
	assert.IsType(t, metrics.NoOpPublisher{}, eng.publisher)
	assert.True(t, eng.sendsOn(time.Monday))
	assert.False(t, eng.sendsOn(time.Tuesday))
	assert.Nil(t, eng.Latest())
	assert.Nil(t, eng.LastReport())
}

func TestRun_DryRunEndToEnd(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {40, 41, 42},
	})

	// Any storage call fails the test.
	private := storeMocks.NewMockObjectStore(t)
	pub := &recordingPublisher{}
	dir := t.TempDir()
	mailer := notify.NewFileMailer(dir, notify.WithFileLogger(logger.Discard()))

	eng := NewEngine(mq, reg, NewPersister(private), pub, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
		WithDryRun(true),
		WithEnvironment("dry_run"),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryFile, res.Delivery)
	assert.True(t, res.DryRun)
	assert.Zero(t, pub.calls)
	require.Len(t, res.Classes, 1)
	assert.False(t, res.Classes[0].HasPrior)
	assert.Equal(t, domain.Measured(42), res.Classes[0].Values["total_active_repositories"])

	html, err := os.ReadFile(mailer.Path(&notify.Message{Date: monday}))
	require.NoError(t, err)
	assert.NotEmpty(t, html)
	assert.Contains(t, string(html), "Thoth SLI Metrics from 2024-03-04 to 2024-03-11")
	assert.Contains(t, string(html), "Total active repositories")
	assert.Contains(t, string(html), "<td>42</td>")
	assert.Equal(t, html, eng.LastReport())
	assert.Same(t, res, eng.Latest())
}

func TestRun_PingFailureAborts(t *testing.T) {
	t.Parallel()

	mq := thanosMocks.NewMockQuerier(t)
	mq.EXPECT().Ping(mock.Anything).Return(errors.New("dial tcp: connection refused")).Once()

	eng := NewEngine(mq, testRegistry(t), nil, nil, notifyMocks.NewMockMailer(t),
		WithLogger(logger.Discard()),
	)

	res, err := eng.Run(context.Background())
	require.ErrorIs(t, err, ErrBackendUnreachable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, res)
	assert.Nil(t, eng.Latest())
}

func TestRun_FailedQueryDoesNotAffectOthers(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "knowledge_graph")
	indices := exprOf(t, reg, "knowledge_graph", "python_indices_registered")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "knowledge_graph", "total_packages"): {100, 90, 120},
		exprOf(t, reg, "knowledge_graph", "total_releases"): {1000, 1500},
	}, indices)

	private := newMemoryStore()
	pub := &recordingPublisher{}
	mailer := notifyMocks.NewMockMailer(t)
	mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	eng := NewEngine(mq, reg, NewPersister(private), pub, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)
	assert.Equal(t, []string{"python_indices_registered"}, res.Classes[0].Failed)

	ind, _ := reg.Lookup("knowledge_graph")
	row := private.row(t, ind, monday)
	assert.True(t, row.Values["python_indices_registered"].IsUnavailable())
	assert.Equal(t, domain.Measured(120), row.Values["total_packages"])
	assert.Equal(t, domain.Measured(20), row.Values["new_packages"])
	assert.Equal(t, domain.Measured(1500), row.Values["total_releases"])
	assert.Equal(t, domain.Measured(500), row.Values["new_packages_releases"])

	html := string(eng.LastReport())
	assert.Contains(t, html, "<td>NaN</td>")
	assert.Contains(t, html, "<td>120</td>")

	// Every query is published; the pusher drops the unavailable one.
	assert.Equal(t, 1, pub.calls)
	require.Len(t, pub.samples, 5)
	assert.Equal(t, "python_indices_registered", pub.samples[0].Name)
	assert.True(t, pub.samples[0].Value.IsUnavailable())
	assert.Equal(t, "knowledge_graph", pub.samples[1].Class)
}

func TestRun_ChangeAgainstPriorSnapshot(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	ind, _ := reg.Lookup("kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {42},
	})

	private := newMemoryStore()
	priorDate := monday.AddDate(0, 0, -7)
	prior, err := store.EncodeRow(ind.Columns(), &domain.Row{
		Class: "kebechet",
		Date:  priorDate,
		Values: domain.Values{
			"total_active_repositories":       domain.Measured(40),
			"delta_total_active_repositories": domain.Unavailable(),
		},
	})
	require.NoError(t, err)
	require.NoError(t, private.Put(context.Background(), store.Key("kebechet", priorDate), prior))

	public := newMemoryStore()
	mailer := notifyMocks.NewMockMailer(t)
	var sent *notify.Message
	mailer.EXPECT().Send(mock.Anything, mock.Anything).
		Run(func(_ context.Context, msg *notify.Message) { sent = msg }).
		Return(nil).
		Once()

	eng := NewEngine(mq, reg, NewPersister(private, WithPublicStore(public)), nil, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
		WithSubject("Thoth Service Level Indicators"),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryEmail, res.Delivery)
	assert.True(t, res.Classes[0].HasPrior)

	row := private.row(t, ind, monday)
	assert.Equal(t, domain.Measured(42), row.Values["total_active_repositories"])
	assert.Equal(t, domain.Measured(2), row.Values["delta_total_active_repositories"])
	assert.Equal(t, row, public.row(t, ind, monday))

	require.NotNil(t, sent)
	assert.Equal(t, "Thoth Service Level Indicators", sent.Subject)
	assert.Equal(t, monday, sent.Date)
	assert.Contains(t, string(sent.HTML), "<td>&#43;2</td>")
}

func TestRun_MalformedPriorIsIgnored(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {42},
	})

	private := newMemoryStore()
	require.NoError(t, private.Put(context.Background(),
		store.Key("kebechet", monday.AddDate(0, 0, -7)), []byte("not,a,snapshot,at,all\n")))

	mailer := notifyMocks.NewMockMailer(t)
	mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	eng := NewEngine(mq, reg, NewPersister(private), nil, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Classes[0].HasPrior)
	assert.Contains(t, string(eng.LastReport()), "<td>N/A</td>")
}

func TestRun_EmptyVectorIsZero(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): nil,
	})

	eng := NewEngine(mq, reg, nil, nil, notify.NewNoOpMailer(logger.Discard()),
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Classes[0].Failed)
	v := res.Classes[0].Values["total_active_repositories"]
	assert.False(t, v.IsUnavailable())
	assert.Equal(t, "0", v.String())
}

func TestRun_SendDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		now      time.Time
		sendsOn  func(time.Weekday) bool
		wantSend bool
		want     Delivery
	}{
		{
			name:     "send day",
			now:      monday,
			wantSend: true,
			want:     DeliveryEmail,
		},
		{
			name: "other day",
			now:  monday.AddDate(0, 0, 1),
			want: DeliverySkipped,
		},
		{
			name:     "every day",
			now:      monday.AddDate(0, 0, 3),
			sendsOn:  func(time.Weekday) bool { return true },
			wantSend: true,
			want:     DeliveryEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := testRegistry(t, "kebechet")
			mq := thanosMocks.NewMockQuerier(t)
			answer(mq, map[string][]float64{
				exprOf(t, reg, "kebechet", "total_active_repositories"): {1},
			})
			mailer := notifyMocks.NewMockMailer(t)
			if tt.wantSend {
				mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()
			}

			opts := []EngineOption{WithLogger(logger.Discard()), WithClock(fixedClock(tt.now))}
			if tt.sendsOn != nil {
				opts = append(opts, WithSendDay(tt.sendsOn))
			}
			eng := NewEngine(mq, reg, nil, nil, mailer, opts...)

			res, err := eng.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Delivery)
		})
	}
}

func TestRun_MailFailureFailsRunAfterStoring(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {5},
	})
	private := newMemoryStore()
	pub := &recordingPublisher{}
	mailer := notifyMocks.NewMockMailer(t)
	mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(errors.New("smtp: 554 rejected")).Once()

	eng := NewEngine(mq, reg, NewPersister(private), pub, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivering report")
	require.NotNil(t, res)
	assert.Equal(t, DeliveryEmail, res.Delivery)
	assert.Len(t, private.objects, 1)
	assert.Equal(t, 1, pub.calls)
	assert.Same(t, res, eng.Latest())
}

func TestRun_StoreOnly(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {5},
	})
	private := newMemoryStore()
	pub := &recordingPublisher{}

	eng := NewEngine(mq, reg, NewPersister(private), pub, notifyMocks.NewMockMailer(t),
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
		WithStoreOnly(true),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryNone, res.Delivery)
	assert.Len(t, private.objects, 1)
	assert.Equal(t, 1, pub.calls)
	assert.Nil(t, eng.LastReport())
}

func TestRun_OutputFailuresAreAbsorbed(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "kebechet")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, map[string][]float64{
		exprOf(t, reg, "kebechet", "total_active_repositories"): {5},
	})

	private := newMemoryStore()
	public := newMemoryStore()
	public.putErr = errors.New("AccessDenied")
	pub := &recordingPublisher{err: errors.New("pushgateway unavailable")}
	mailer := notifyMocks.NewMockMailer(t)
	mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	before := ptestutil.ToFloat64(metrics.StorageWritesTotal.WithLabelValues(bucketPublic, resultError))

	eng := NewEngine(mq, reg, NewPersister(private, WithPublicStore(public)), pub, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeliveryEmail, res.Delivery)
	assert.Len(t, private.objects, 1)
	assert.Empty(t, public.objects)
	assert.GreaterOrEqual(t,
		ptestutil.ToFloat64(metrics.StorageWritesTotal.WithLabelValues(bucketPublic, resultError))-before,
		1.0)
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	eng := NewEngine(thanosMocks.NewMockQuerier(t), testRegistry(t), nil, nil, notifyMocks.NewMockMailer(t),
		WithLogger(logger.Discard()),
	)
	eng.running.Lock()
	defer eng.running.Unlock()

	_, err := eng.Run(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	mq := thanosMocks.NewMockQuerier(t)
	mq.EXPECT().Ping(mock.Anything).Return(nil).Once()

	eng := NewEngine(mq, testRegistry(t, "kebechet"), nil, nil, notifyMocks.NewMockMailer(t),
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_InstantQueryAtWindowEnd(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "user_api")
	mq := thanosMocks.NewMockQuerier(t)
	mq.EXPECT().Ping(mock.Anything).Return(nil).Once()
	mq.EXPECT().QueryRange(mock.Anything, mock.Anything, mock.Anything).Return([]float64{10, 10}, nil).Times(2)
	mq.EXPECT().
		Query(mock.Anything, mock.MatchedBy(func(expr string) bool {
			return strings.HasPrefix(expr, "avg_over_time(up{")
		}), monday).
		Return([]float64{0.5}, nil).
		Once()

	eng := NewEngine(mq, reg, nil, nil, notify.NewNoOpMailer(logger.Discard()),
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	values := res.Classes[0].Values
	assert.Equal(t, domain.Measured(100), values["avg_percentage_successfull_request"])
	assert.Equal(t, domain.Measured(50), values["avg_up_time"])
}

func TestRun_DigestReadsDailyTables(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "adviser_statistics")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, nil)

	const header = "datetime,adviser_version,success,failure\n"
	private := newMemoryStore()
	today := header + "2024-03-11,0.21.1,5,1\n"
	private.objects["adviser_statistics/adviser_statistics-2024-03-11.csv"] = []byte(today)
	private.objects["adviser_statistics/adviser_statistics-2024-03-10.csv"] = []byte(header + "2024-03-10,0.21.1,3,1\n")
	// Outside the three day range.
	private.objects["adviser_statistics/adviser_statistics-2024-03-08.csv"] = []byte(header + "2024-03-08,0.21.1,100,0\n")

	pub := &recordingPublisher{}
	mailer := notifyMocks.NewMockMailer(t)
	mailer.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	eng := NewEngine(mq, reg, NewPersister(private), pub, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)
	assert.Equal(t, domain.Measured(80), res.Classes[0].Values["0.21.1/success"])
	assert.Equal(t, domain.Measured(20), res.Classes[0].Values["0.21.1/failure"])
	assert.Equal(t, []string{"adviser_statistics/adviser_statistics-2024-03-09.csv"}, res.Classes[0].Failed)

	// Nothing is stored over the daily table and nothing is pushed.
	assert.Equal(t, today, string(private.objects["adviser_statistics/adviser_statistics-2024-03-11.csv"]))
	assert.Len(t, private.objects, 3)
	assert.Empty(t, pub.samples)

	html := string(eng.LastReport())
	assert.Contains(t, html, "Adviser Reports Statistics")
	assert.Contains(t, html, "<td>0.21.1</td><td>80%</td><td>20%</td>")
}

func TestRun_DryRunDigestReadsNothing(t *testing.T) {
	t.Parallel()

	reg := testRegistry(t, "adviser_solver_info")
	mq := thanosMocks.NewMockQuerier(t)
	answer(mq, nil)

	// Any storage call fails the test.
	private := storeMocks.NewMockObjectStore(t)
	mailer := notify.NewFileMailer(t.TempDir(), notify.WithFileLogger(logger.Discard()))

	eng := NewEngine(mq, reg, NewPersister(private), nil, mailer,
		WithLogger(logger.Discard()),
		WithClock(fixedClock(monday)),
		WithDryRun(true),
	)

	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Classes, 1)
	assert.Empty(t, res.Classes[0].Values)
	assert.Contains(t, string(eng.LastReport()), "No advise-reporter data for the last 3 days.")
}

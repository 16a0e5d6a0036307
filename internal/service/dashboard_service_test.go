package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

type memoryCacheRepo struct {
	values map[string][]byte
	sets   int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(m.values, pattern)
	return nil
}

func dashboardFixture(t *testing.T, cache *CacheService) (*fixture, *DashboardService) {
	f := newFixture(t)
	pending := teacher("p1", "Chưa duyệt")
	pending.IsApproved = false
	f.users(t, teacher("u1", "An"), teacher("u2", "Bình"), pending)
	f.slots(t,
		slot("s1", "u1", 2, 1, models.SessionMorning, "Toán 6/1"),
		slot("s2", "u1", 3, 1, models.SessionMorning, "Toán 6/1"),
	)
	for _, r := range []models.SubstituteRequest{
		{ID: "r1", AbsentTeacherID: "u2", Date: "2024-09-10", Period: 2, Session: models.SessionMorning, Status: models.SubstitutePending},
		{ID: "r2", AbsentTeacherID: "u1", Date: "2024-09-11", Period: 1, Session: models.SessionMorning, Status: models.SubstitutePending},
		{ID: "r3", AbsentTeacherID: "u1", Date: "2024-09-11", Period: 2, Session: models.SessionMorning, SubstituteTeacherID: "u2", Status: models.SubstitutePending},
	} {
		require.NoError(t, f.repos.Substitutes.Save(f.ctx, r))
	}
	for _, d := range []models.TeachingDemo{
		{ID: "d1", TeacherID: "u2", Date: "2024-09-12", Period: 3, Session: models.SessionMorning},
		{ID: "d2", TeacherID: "u2", Date: "2024-09-10", Period: 1, Session: models.SessionAfternoon},
		{ID: "d3", TeacherID: "u2", Date: "2024-09-10", Period: 4, Session: models.SessionMorning, IsCancelled: true},
		{ID: "d4", TeacherID: "u2", Date: "2024-09-20", Period: 1, Session: models.SessionMorning},
	} {
		require.NoError(t, f.repos.Demos.Save(f.ctx, d))
	}
	for _, n := range []models.SystemNotification{
		{ID: "n1", Content: "thường", Date: "2024-09-08T08:00:00+07:00"},
		{ID: "n2", Content: "gấp", Date: "2024-09-07T08:00:00+07:00", IsImportant: true},
	} {
		require.NoError(t, f.repos.Notifications.Save(f.ctx, n))
	}
	svc := NewDashboardService(DashboardServiceParams{
		Users:         f.repos.Users,
		Schedule:      f.repos.Schedule,
		Substitutes:   NewSubstituteService(f.repos.Substitutes, f.repos.Schedule, f.repos.Users, f.calendar, nil, nil),
		Demos:         f.repos.Demos,
		Notifications: NewNotificationService(f.repos.Notifications, f.repos.Users, nil, nil, f.calendar, "", nil, nil),
		Calendar:      f.calendar,
		Cache:         cache,
	})
	return f, svc
}

func TestDashboardServiceSummaryForTeacher(t *testing.T) {
	f, svc := dashboardFixture(t, nil)

	summary, hit, err := svc.Summary(f.ctx, actorOf(teacher("u1", "An")))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, monday, summary.Today)
	assert.Nil(t, summary.PendingApprovals)

	require.Len(t, summary.OpenMarket, 1)
	assert.Equal(t, "r1", summary.OpenMarket[0].ID)
	require.Len(t, summary.MyPendingAbsences, 1)
	assert.Equal(t, "r2", summary.MyPendingAbsences[0].ID)
	require.Len(t, summary.TodayLessons, 1)
	assert.Equal(t, "s1", summary.TodayLessons[0].ID)

	require.Len(t, summary.WeekDemos, 2)
	assert.Equal(t, "d2", summary.WeekDemos[0].ID)
	assert.Equal(t, "d1", summary.WeekDemos[1].ID)

	require.Len(t, summary.Notifications, 1)
	assert.Equal(t, "n2", summary.Notifications[0].ID)
}

func TestDashboardServiceSummaryForManagement(t *testing.T) {
	f, svc := dashboardFixture(t, nil)

	summary, _, err := svc.Summary(f.ctx, tcmActor)
	require.NoError(t, err)
	require.NotNil(t, summary.PendingApprovals)
	assert.Equal(t, 1, *summary.PendingApprovals)
	assert.Len(t, summary.OpenMarket, 2)
	assert.Empty(t, summary.TodayLessons)
}

func TestDashboardServiceSummaryIsCached(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	f, svc := dashboardFixture(t, cache)
	actor := actorOf(teacher("u1", "An"))

	_, hit, err := svc.Summary(f.ctx, actor)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, repo.values, "dash:u1:"+monday)

	require.NoError(t, f.repos.Schedule.Delete(f.ctx, "s1"))
	cached, hit, err := svc.Summary(f.ctx, actor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, cached.TodayLessons, 1)
}

func TestDashboardServiceSummaryPropagatesErrors(t *testing.T) {
	f := newFixture(t)
	svc := NewDashboardService(DashboardServiceParams{
		Users:         f.repos.Users,
		Schedule:      f.repos.Schedule,
		Substitutes:   NewSubstituteService(f.repos.Substitutes, f.repos.Schedule, f.repos.Users, f.calendar, nil, nil),
		Demos:         failingDemos{},
		Notifications: NewNotificationService(f.repos.Notifications, f.repos.Users, nil, nil, f.calendar, "", nil, nil),
		Calendar:      f.calendar,
	})

	_, _, err := svc.Summary(f.ctx, tcmActor)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
}

type failingDemos struct{}

func (failingDemos) List(context.Context) ([]models.TeachingDemo, error) {
	return nil, appErrors.Upstream(errors.New("timeout"), "failed to load demos")
}

func TestCacheServiceRemember(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), 0, nil, true)
	calls := 0
	fill := func(dest *[]string) func(context.Context) error {
		return func(context.Context) error {
			calls++
			*dest = []string{"a", "b"}
			return nil
		}
	}

	var first []string
	hit, err := cache.Remember(ctx, "k", 0, &first, fill(&first))
	require.NoError(t, err)
	assert.False(t, hit)

	var second []string
	hit, err = cache.Remember(ctx, "k", 0, &second, fill(&second))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, second)
	assert.Equal(t, 1, calls)

	require.NoError(t, cache.Invalidate(ctx, "k"))
	_, err = cache.Remember(ctx, "k", 0, &second, func(context.Context) error { return appErrors.ErrInternal })
	assert.True(t, errors.Is(err, appErrors.ErrInternal))

	var disabled *CacheService
	hit, err = disabled.Remember(ctx, "k", 0, &first, fill(&first))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestCacheServiceRememberCoalescesMisses(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheService(nil, nil, 0, nil, false)
	release := make(chan struct{})
	var calls atomic.Int32

	results := make([][]string, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := cache.Remember(ctx, "dash:u1", 0, &results[i], func(context.Context) error {
				calls.Add(1)
				<-release
				results[i] = []string{"x"}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"x"}, r)
	}
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

// flakyStore fails saves after the first n succeed.
type flakyStore struct {
	*recordstore.MemoryStore
	mu    sync.Mutex
	okay  int
	saves int
}

func (s *flakyStore) Save(ctx context.Context, entity string, record interface{}) error {
	if entity == recordstore.EntitySubstitutes {
		s.mu.Lock()
		s.saves++
		fail := s.saves > s.okay
		s.mu.Unlock()
		if fail {
			return errors.New("quota exceeded")
		}
	}
	return s.MemoryStore.Save(ctx, entity, record)
}

func substituteFixture(t *testing.T) (*fixture, models.User, models.User) {
	f := newFixture(t)
	an := teacher("u1", "An", "Toán 6/1", "Toán 6/2")
	binh := teacher("u2", "Bình", "Toán 7/1")
	f.users(t, an, binh)
	f.slots(t,
		slot("s1", "u1", 2, 1, models.SessionMorning, "Toán 6/1"),
		slot("s2", "u1", 2, 3, models.SessionMorning, "Toán 6/2"),
		slot("s3", "u1", 2, 2, models.SessionAfternoon, "Toán 6/1"),
		slot("s4", "u2", 2, 3, models.SessionMorning, "Toán 7/1"),
	)
	return f, an, binh
}

func newSubstituteService(f *fixture) *SubstituteService {
	return NewSubstituteService(f.repos.Substitutes, f.repos.Schedule, f.repos.Users, f.calendar, nil, nil)
}

func TestSubstituteServiceRegisterAbsence(t *testing.T) {
	f, an, _ := substituteFixture(t)
	svc := newSubstituteService(f)

	affected, err := svc.Affected(f.ctx, actorOf(an), monday, models.SessionMorning)
	require.NoError(t, err)
	assert.Len(t, affected, 2)

	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{
		Date:    monday,
		Session: models.SessionAllDay,
		Reason:  models.AbsenceReasons[0],
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	for _, r := range result.Created {
		assert.Equal(t, models.SubstitutePending, r.Status)
		assert.Equal(t, models.PointsPerPeriod, r.PointsAwarded)
		assert.Equal(t, monday, r.Date)
	}

	again, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{
		Date:    monday,
		Session: models.SessionMorning,
		Reason:  models.AbsenceReasons[0],
	})
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Len(t, again.Skipped, 2)
}

func TestSubstituteServiceRegisterAbsenceValidation(t *testing.T) {
	f, an, _ := substituteFixture(t)
	svc := newSubstituteService(f)

	_, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{Date: monday, Session: models.SessionMorning, Reason: "Đi chơi"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{Date: "2024-09-10", Session: models.SessionMorning, Reason: models.AbsenceReasons[1]})
	assert.True(t, errors.Is(err, appErrors.ErrValidation), "no lessons on Tuesday")
}

func TestSubstituteServiceRegisterAbsenceRollsBack(t *testing.T) {
	f, an, _ := substituteFixture(t)
	store := &flakyStore{MemoryStore: f.store, okay: 1}
	repos := repository.NewCollections(store)
	svc := NewSubstituteService(repos.Substitutes, repos.Schedule, repos.Users, f.calendar, nil, nil)

	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{
		Date:         monday,
		Session:      models.SessionMorning,
		Reason:       models.AbsenceReasons[0],
		AllOrNothing: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUpstream))
	assert.True(t, result.RolledBack)
	assert.Len(t, result.Failed, 1)

	left, err := repos.Substitutes.ListFresh(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSubstituteServiceRegisterAbsencePartial(t *testing.T) {
	f, an, _ := substituteFixture(t)
	store := &flakyStore{MemoryStore: f.store, okay: 1}
	repos := repository.NewCollections(store)
	svc := NewSubstituteService(repos.Substitutes, repos.Schedule, repos.Users, f.calendar, nil, nil)

	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{
		Date:    monday,
		Session: models.SessionMorning,
		Reason:  models.AbsenceReasons[0],
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Len(t, result.Failed, 1)
	assert.False(t, result.RolledBack)
}

func TestSubstituteServiceAccept(t *testing.T) {
	f, an, binh := substituteFixture(t)
	chi := teacher("u3", "Chi")
	f.users(t, chi)
	svc := newSubstituteService(f)

	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{Date: monday, Session: models.SessionMorning, Reason: models.AbsenceReasons[0]})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	first, third := result.Created[0], result.Created[1]
	require.Equal(t, 1, first.Period)
	require.Equal(t, 3, third.Period)

	market, err := svc.Market(f.ctx, actorOf(binh))
	require.NoError(t, err)
	assert.Len(t, market, 2)
	mine, err := svc.Market(f.ctx, actorOf(an))
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = svc.Accept(f.ctx, actorOf(an), first.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Accept(f.ctx, actorOf(binh), third.ID)
	assert.True(t, errors.Is(err, appErrors.ErrConflict), "Bình teaches period 3")

	accepted, err := svc.Accept(f.ctx, actorOf(binh), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "u2", accepted.SubstituteTeacherID)
	assert.Equal(t, models.SubstituteApproved, accepted.Status)

	_, err = svc.Accept(f.ctx, actorOf(chi), first.ID)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	subs, err := svc.MySubstitutions(f.ctx, actorOf(binh))
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSubstituteServiceConcurrentAcceptHasOneWinner(t *testing.T) {
	f, an, _ := substituteFixture(t)
	var racers []models.User
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		u := teacher(id, "Racer "+id)
		racers = append(racers, u)
		f.users(t, u)
	}
	svc := newSubstituteService(f)
	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{Date: monday, Session: models.SessionMorning, Reason: models.AbsenceReasons[0]})
	require.NoError(t, err)
	target := result.Created[0].ID

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, u := range racers {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			if _, err := svc.Accept(f.ctx, actorOf(u), target); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSubstituteServiceCancelReviewAndPoints(t *testing.T) {
	f, an, binh := substituteFixture(t)
	tcm := teacher("tcm", "Tổ trưởng")
	tcm.Role = models.RoleTCM
	f.users(t, tcm)
	svc := newSubstituteService(f)

	result, err := svc.RegisterAbsence(f.ctx, actorOf(an), RegisterAbsenceRequest{Date: monday, Session: models.SessionAllDay, Reason: models.AbsenceReasons[2]})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)

	assert.True(t, errors.Is(svc.Cancel(f.ctx, actorOf(binh), result.Created[0].ID), appErrors.ErrForbidden))

	_, err = svc.Accept(f.ctx, actorOf(binh), result.Created[0].ID)
	require.NoError(t, err)
	assert.True(t, errors.Is(svc.Cancel(f.ctx, actorOf(an), result.Created[0].ID), appErrors.ErrConflict))
	require.NoError(t, svc.Cancel(f.ctx, actorOf(an), result.Created[2].ID))

	flag := true
	note := "  đã xác minh "
	_, err = svc.Review(f.ctx, actorOf(binh), result.Created[0].ID, ReviewSubstituteRequest{IsFlagged: &flag})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	reviewed, err := svc.Review(f.ctx, actorOf(tcm), result.Created[0].ID, ReviewSubstituteRequest{IsFlagged: &flag, AdminNote: &note})
	require.NoError(t, err)
	assert.True(t, reviewed.IsFlagged)
	assert.Equal(t, "đã xác minh", reviewed.AdminNote)

	points, err := svc.Points(f.ctx, "2024-09-01", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "u2", points[0].TeacherID)
	assert.Equal(t, 1, points[0].Periods)
	assert.InDelta(t, 0.25, points[0].Points, 1e-9)

	none, err := svc.Points(f.ctx, "2024-10-01", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

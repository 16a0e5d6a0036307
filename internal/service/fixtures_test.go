package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/internal/repository"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

// monday is 2024-09-09, school day 2.
const monday = "2024-09-09"

type fixture struct {
	ctx      context.Context
	store    *recordstore.MemoryStore
	repos    *repository.Collections
	calendar *Calendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := recordstore.NewMemoryStore()
	return &fixture{
		ctx:      context.Background(),
		store:    store,
		repos:    repository.NewCollections(store),
		calendar: fixedCalendar(t, "2024-09-09T08:00:00+07:00"),
	}
}

func fixedCalendar(t *testing.T, now string) *Calendar {
	t.Helper()
	at, err := time.Parse(time.RFC3339, now)
	require.NoError(t, err)
	cal := NewCalendar(DefaultTimezone)
	cal.now = func() time.Time { return at }
	return cal
}

func (f *fixture) users(t *testing.T, users ...models.User) {
	t.Helper()
	for _, u := range users {
		if u.AssignedClasses == nil {
			u.AssignedClasses = []string{}
		}
		require.NoError(t, f.repos.Users.Save(f.ctx, u))
	}
}

func (f *fixture) slots(t *testing.T, items ...models.ScheduleItem) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, f.repos.Schedule.Save(f.ctx, item))
	}
}

func teacher(id, name string, classes ...string) models.User {
	return models.User{
		ID:              id,
		Username:        id,
		Name:            name,
		Email:           id + "@school.edu.vn",
		Role:            models.RoleGV,
		Subject:         "Toán",
		IsApproved:      true,
		AssignedClasses: classes,
	}
}

func actorOf(u models.User) Actor {
	return Actor{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

func slot(id, teacherID string, day, period int, session models.Session, class string) models.ScheduleItem {
	return models.ScheduleItem{
		ID:        id,
		TeacherID: teacherID,
		DayOfWeek: day,
		Period:    period,
		Session:   session,
		Subject:   models.SubjectOf(class),
		ClassName: class,
	}
}

package repository

import (
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

// Collections groups the typed collections of every entity.
type Collections struct {
	Users         *Collection[models.User]
	Schedule      *Collection[models.ScheduleItem]
	Substitutes   *Collection[models.SubstituteRequest]
	Scores        *Collection[models.TeacherScoreRow]
	Documents     *Collection[models.Document]
	Demos         *Collection[models.TeachingDemo]
	LessonPlans   *Collection[models.LessonPlanReview]
	Notifications *Collection[models.SystemNotification]
}

// NewCollections binds every entity of the store.
func NewCollections(store recordstore.Store, opts ...CollectionOption) *Collections {
	return &Collections{
		Users: NewCollection(store, recordstore.EntityUsers,
			func(u models.User) string { return u.ID }, opts...),
		Schedule: NewCollection(store, recordstore.EntitySchedule,
			func(s models.ScheduleItem) string { return s.ID }, opts...),
		Substitutes: NewCollection(store, recordstore.EntitySubstitutes,
			func(r models.SubstituteRequest) string { return r.ID }, opts...),
		Scores: NewCollection(store, recordstore.EntityScores,
			func(r models.TeacherScoreRow) string { return r.ID }, opts...),
		Documents: NewCollection(store, recordstore.EntityDocuments,
			func(d models.Document) string { return d.ID }, opts...),
		Demos: NewCollection(store, recordstore.EntityDemos,
			func(d models.TeachingDemo) string { return d.ID }, opts...),
		LessonPlans: NewCollection(store, recordstore.EntityLessonPlans,
			func(r models.LessonPlanReview) string { return r.ID }, opts...),
		Notifications: NewCollection(store, recordstore.EntityNotifications,
			func(n models.SystemNotification) string { return n.ID }, opts...),
	}
}

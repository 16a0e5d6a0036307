package models

// DashboardSummary is the landing view of one user.
type DashboardSummary struct {
	GeneratedAt       string               `json:"generatedAt"`
	Today             string               `json:"today"`
	PendingApprovals  *int                 `json:"pendingApprovals,omitempty"`
	OpenMarket        []SubstituteRequest  `json:"openMarket"`
	MyPendingAbsences []SubstituteRequest  `json:"myPendingAbsences"`
	TodayLessons      []ScheduleItem       `json:"todayLessons"`
	WeekDemos         []TeachingDemo       `json:"weekDemos"`
	Notifications     []SystemNotification `json:"notifications"`
}

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/dept-portal-api/internal/models"
)

type substituteBoard interface {
	Market(ctx context.Context, actor Actor) ([]models.SubstituteRequest, error)
	MyAbsences(ctx context.Context, actor Actor) ([]models.SubstituteRequest, error)
}

type demoLister interface {
	List(ctx context.Context) ([]models.TeachingDemo, error)
}

type notificationLister interface {
	List(ctx context.Context, limit int) ([]models.SystemNotification, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	MarketLimit        int
	NotificationsLimit int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users         userLookup
	Schedule      scheduleReader
	Substitutes   substituteBoard
	Demos         demoLister
	Notifications notificationLister
	Calendar      *Calendar
	Cache         *CacheService
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// DashboardService composes the per-user landing summary.
type DashboardService struct {
	users         userLookup
	schedule      scheduleReader
	substitutes   substituteBoard
	demos         demoLister
	notifications notificationLister
	calendar      *Calendar
	cache         *CacheService
	logger        *zap.Logger
	cfg           DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if cfg.MarketLimit <= 0 {
		cfg.MarketLimit = 10
	}
	if cfg.NotificationsLimit <= 0 {
		cfg.NotificationsLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	calendar := params.Calendar
	if calendar == nil {
		calendar = NewCalendar(DefaultTimezone)
	}
	return &DashboardService{
		users:         params.Users,
		schedule:      params.Schedule,
		substitutes:   params.Substitutes,
		demos:         params.Demos,
		notifications: params.Notifications,
		calendar:      calendar,
		cache:         params.Cache,
		logger:        logger,
		cfg:           cfg,
	}
}

// Summary returns the caller's dashboard and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context, actor Actor) (*models.DashboardSummary, bool, error) {
	today := s.calendar.Today()
	key := fmt.Sprintf("dash:%s:%s", actor.ID, today)
	summary := &models.DashboardSummary{}
	hit, err := s.cache.Remember(ctx, key, s.cfg.CacheTTL, summary, func(ctx context.Context) error {
		return s.compose(ctx, actor, today, summary)
	})
	if err != nil {
		return nil, false, err
	}
	return summary, hit, nil
}

func (s *DashboardService) compose(ctx context.Context, actor Actor, today string, out *models.DashboardSummary) error {
	out.Today = today
	out.GeneratedAt = s.calendar.Timestamp()
	day, err := s.calendar.SchoolDay(today)
	if err != nil {
		return err
	}
	monday, sunday := s.calendar.Week(s.calendar.Now())
	weekFrom, weekTo := monday.Format(models.DateLayout), sunday.Format(models.DateLayout)

	g, gctx := errgroup.WithContext(ctx)
	if actor.IsManagement() {
		g.Go(func() error {
			users, err := s.users.List(gctx)
			if err != nil {
				return err
			}
			pending := 0
			for _, u := range users {
				if !u.IsApproved {
					pending++
				}
			}
			out.PendingApprovals = &pending
			return nil
		})
	}
	g.Go(func() error {
		market, err := s.substitutes.Market(gctx, actor)
		if err != nil {
			return err
		}
		if len(market) > s.cfg.MarketLimit {
			market = market[:s.cfg.MarketLimit]
		}
		out.OpenMarket = market
		return nil
	})
	g.Go(func() error {
		mine, err := s.substitutes.MyAbsences(gctx, actor)
		if err != nil {
			return err
		}
		out.MyPendingAbsences = make([]models.SubstituteRequest, 0)
		for _, r := range mine {
			if r.Open() && r.Status == models.SubstitutePending {
				out.MyPendingAbsences = append(out.MyPendingAbsences, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.schedule.List(gctx)
		if err != nil {
			return err
		}
		out.TodayLessons = slotsOn(items, actor.ID, day, "")
		return nil
	})
	g.Go(func() error {
		demos, err := s.demos.List(gctx)
		if err != nil {
			return err
		}
		out.WeekDemos = make([]models.TeachingDemo, 0)
		for _, d := range demos {
			d.Date = s.calendar.Normalize(d.Date)
			if !d.IsCancelled && s.calendar.InRange(d.Date, weekFrom, weekTo) {
				out.WeekDemos = append(out.WeekDemos, d)
			}
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.notifications.List(gctx, 0)
		if err != nil {
			return err
		}
		out.Notifications = make([]models.SystemNotification, 0, s.cfg.NotificationsLimit)
		for _, n := range items {
			if n.IsImportant && len(out.Notifications) < s.cfg.NotificationsLimit {
				out.Notifications = append(out.Notifications, n)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard compose failed", zap.String("user_id", actor.ID), zap.Error(err))
		return err
	}
	sortDemosByDate(out.WeekDemos)
	return nil
}

func sortDemosByDate(demos []models.TeachingDemo) {
	sort.SliceStable(demos, func(i, j int) bool {
		a, b := demos[i], demos[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Session.Order() != b.Session.Order() {
			return a.Session.Order() < b.Session.Order()
		}
		return a.Period < b.Period
	})
}

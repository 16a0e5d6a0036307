package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/dept-portal-api/internal/middleware"
	"github.com/noah-isme/dept-portal-api/internal/models"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Schedule      *ScheduleHandler
	Substitutes   *SubstituteHandler
	Scores        *ScoreHandler
	Documents     *DocumentHandler
	Demos         *DemoHandler
	LessonPlans   *LessonPlanHandler
	Notifications *NotificationHandler
	Dashboard     *DashboardHandler
	Settings      *SettingHandler
	Exports       *ExportHandler
	Meta          *MetaHandler
	Metrics       *MetricsHandler
}

// RouterConfig carries what route registration needs besides handlers.
type RouterConfig struct {
	APIPrefix string
	Tokens    middleware.TokenValidator
	Logger    *zap.Logger
}

// RegisterRoutes mounts health checks at the root and the API under the prefix.
func RegisterRoutes(r *gin.Engine, h Handlers, cfg RouterConfig) {
	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(cfg.Logger, action, resource)
	}
	management := middleware.RequireManagement()
	mainAdmin := middleware.RequireMainAdmin()

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/register", audit("register", "user"), h.Users.Register)
	api.GET("/settings/client-id", h.Settings.ClientID)
	api.GET("/meta/options", h.Meta.Options)
	api.GET("/exports/download/:token", h.Exports.Download)

	secured := api.Group("", middleware.JWT(cfg.Tokens))
	secured.GET("/auth/me", h.Auth.Me)
	secured.PUT("/auth/password", audit("change_password", "user"), h.Auth.ChangePassword)
	secured.GET("/metrics/summary", management, h.Metrics.Summary)
	secured.GET("/dashboard", h.Dashboard.Summary)
	secured.PUT("/settings/client-id", mainAdmin, audit("update", "setting"), h.Settings.UpdateClientID)

	users := secured.Group("/users")
	users.GET("", h.Users.List)
	users.GET("/class-conflicts", h.Users.ClassConflict)
	users.PUT("/:id", middleware.RBAC(string(models.RoleTCM), string(models.RoleTP), "SELF"), audit("update", "user"), h.Users.Update)
	users.POST("/:id/approve", management, audit("approve", "user"), h.Users.Approve)
	users.PUT("/:id/role", mainAdmin, audit("change_role", "user"), h.Users.ChangeRole)
	users.DELETE("/:id", mainAdmin, audit("delete", "user"), h.Users.Delete)

	schedule := secured.Group("/schedule")
	schedule.GET("", h.Schedule.List)
	schedule.GET("/me", h.Schedule.Mine)
	schedule.POST("", audit("save", "schedule"), h.Schedule.Save)
	schedule.DELETE("/:id", audit("delete", "schedule"), h.Schedule.Delete)

	subs := secured.Group("/substitutes")
	subs.GET("", h.Substitutes.List)
	subs.GET("/market", h.Substitutes.Market)
	subs.GET("/mine/absences", h.Substitutes.MyAbsences)
	subs.GET("/mine/substitutions", h.Substitutes.MySubstitutions)
	subs.GET("/affected", h.Substitutes.Affected)
	subs.GET("/points", h.Substitutes.Points)
	subs.POST("/absences", audit("register_absence", "substitute"), h.Substitutes.RegisterAbsence)
	subs.POST("/:id/accept", audit("accept", "substitute"), h.Substitutes.Accept)
	subs.DELETE("/:id", audit("cancel", "substitute"), h.Substitutes.Cancel)
	subs.PATCH("/:id/review", management, audit("review", "substitute"), h.Substitutes.Review)

	scores := secured.Group("/scores")
	scores.GET("", h.Scores.Table)
	scores.POST("/export", h.Scores.Export)
	scores.PUT("/:teacherId", management, audit("update", "score"), h.Scores.Upsert)

	docs := secured.Group("/documents")
	docs.GET("", h.Documents.List)
	docs.POST("", audit("upload", "document"), h.Documents.Upload)
	docs.GET("/uploads/:id", h.Documents.UploadStatus)
	docs.PATCH("/:id/review", middleware.RequireRoles(models.RoleTCM), audit("review", "document"), h.Documents.Review)
	docs.DELETE("/:id", audit("delete", "document"), h.Documents.Delete)

	demos := secured.Group("/demos")
	demos.GET("", h.Demos.List)
	demos.GET("/stats", h.Demos.Stats)
	demos.GET("/slots", h.Demos.Slots)
	demos.GET("/available", h.Demos.Available)
	demos.POST("", audit("register", "demo"), h.Demos.Register)
	demos.PATCH("/:id/status", management, audit("update_status", "demo"), h.Demos.UpdateStatus)
	demos.DELETE("/:id", audit("delete", "demo"), h.Demos.Delete)

	plans := secured.Group("/lesson-plans")
	plans.GET("", h.LessonPlans.List)
	plans.POST("/comments", management, audit("comment", "lesson_plan"), h.LessonPlans.AddComment)
	plans.DELETE("/:id/comments/:commentId", audit("delete_comment", "lesson_plan"), h.LessonPlans.DeleteComment)
	plans.POST("/export", h.LessonPlans.Export)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.POST("", middleware.RequireRoles(models.RoleTCM, models.RoleTP, models.RoleBGH), audit("post", "notification"), h.Notifications.Post)
	notifications.DELETE("/:id", audit("delete", "notification"), h.Notifications.Delete)
}

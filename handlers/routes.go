package handlers

import (
	"time"

	"bounty-platform/logging"
	"bounty-platform/middleware"
	"bounty-platform/services"
	"bounty-platform/storage"

	"github.com/gofiber/fiber/v2"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	GatewayToken  string
	StreamTokens  *middleware.StreamTokens
	Reports       *services.ReportService
	Progression   *services.ProgressionService
	Leaderboard   *services.LeaderboardService
	Analytics     *services.AnalyticsService
	Notifications *services.NotificationService
	Store         storage.AttachmentStore
	Log           logging.Logger
	KeepAlive     time.Duration
}

// Register mounts every route. Routes registered before the user-context group
// are not subject to it.
func Register(app *fiber.App, d Deps) {
	app.Use(middleware.GatewayAuthMiddleware(d.GatewayToken, d.Log, "/health"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/notifications/stream",
		middleware.SSEAuthMiddleware(d.StreamTokens, d.Log),
		NotificationStream(d.Notifications, d.KeepAlive))

	secured := app.Group("/", middleware.UserContextMiddleware(d.Log))
	SetupReportRoutes(secured, &ReportHandler{Reports: d.Reports, Store: d.Store, Log: d.Log})
	SetupLeaderboardRoutes(secured, d.Leaderboard)
	SetupAnalyticsRoutes(secured, d.Analytics)
	SetupProgressionRoutes(secured, d.Progression)
	SetupNotificationRoutes(secured, d.Notifications)
}

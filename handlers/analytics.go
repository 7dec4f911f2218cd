package handlers

import (
	"context"

	"bounty-platform/middleware"
	"bounty-platform/models"
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

// analyticsView adapts one AnalyticsService read to a fiber handler.
func analyticsView[T any](read func(context.Context, services.Actor) (T, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		out, err := read(c.UserContext(), a)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	}
}

func SetupAnalyticsRoutes(r fiber.Router, analytics *services.AnalyticsService) {
	g := r.Group("/analytics")

	g.Get("/hacker/severity", analyticsView(analytics.SeverityBreakdown))
	g.Get("/hacker/monthly", analyticsView(analytics.MonthlyActivity))
	g.Get("/hacker/acceptance", analyticsView(analytics.AcceptanceBreakdown))
	g.Get("/hacker/impact", analyticsView(analytics.Impact))
	g.Get("/hacker/summary", analyticsView(analytics.Summary))

	g.Get("/company/funnel", analyticsView(analytics.Funnel))
	g.Get("/company/rewards", analyticsView(analytics.Rewards))
	g.Get("/company/ttr", analyticsView(analytics.TimeToResolve))
	g.Get("/company/program-insights", analyticsView(analytics.ProgramInsights))

	admin := g.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	admin.Get("/overview", analyticsView(analytics.Overview))
	admin.Get("/abuse", analyticsView(analytics.AbuseCandidates))
}

package handlers

import (
	"bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(r fiber.Router, board *services.LeaderboardService) {
	r.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := board.Points(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	r.Get("/leaderboard/my-stats", func(c *fiber.Ctx) error {
		a, err := actor(c)
		if err != nil {
			return respondError(c, err)
		}
		stats, err := board.HackerStats(c.UserContext(), a)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})

	r.Get("/leaderboard/global", func(c *fiber.Ctx) error {
		entries, err := board.Global(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	r.Get("/leaderboard/seasonal", func(c *fiber.Ctx) error {
		entries, err := board.Seasonal(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	r.Get("/leaderboard/country/:country", func(c *fiber.Ctx) error {
		entries, err := board.Country(c.UserContext(), c.Params("country"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})
}

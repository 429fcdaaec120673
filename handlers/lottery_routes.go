// handlers/lottery_routes.go
package handlers

import (
	"content-reward-system/middleware"
	"content-reward-system/services"

	"github.com/gofiber/fiber/v2"
)

const operatorRole = "lottery_operator"

func SetupLotteryRoutes(app *fiber.App, lotteryService *services.LotteryService) {
	secured := app.Group("/lottery", middleware.UserContextMiddleware())

	secured.Get("/current", func(c *fiber.Ctx) error {
		drawing, err := lotteryService.GetOrCreateCurrentDrawing()
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(drawing)
	})

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		scores, err := lotteryService.Leaderboard(c.QueryInt("limit", 25))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(scores)
	})

	secured.Get("/history", func(c *fiber.Ctx) error {
		drawings, err := lotteryService.History(c.QueryInt("limit", 12))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(drawings)
	})

	// Operator actions. The scheduler normally closes the week; these exist
	// for manual intervention.
	operator := secured.Group("/", middleware.RequireRole(operatorRole))

	operator.Post("/draw", func(c *fiber.Ctx) error {
		drawing, err := lotteryService.GetOrCreateCurrentDrawing()
		if err != nil {
			return errorResponse(c, err)
		}
		if _, err := lotteryService.ComputeEligibility(drawing); err != nil {
			return errorResponse(c, err)
		}
		outcome, err := lotteryService.Draw(c.Context(), drawing.ID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(outcome)
	})

	operator.Post("/reset-week", func(c *fiber.Ctx) error {
		if err := lotteryService.ResetWeek(); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "Current cycle reset"})
	})
}

// handlers/bounty_routes.go
package handlers

import (
	"time"

	"content-reward-system/middleware"
	"content-reward-system/services"
	"content-reward-system/utils"

	"github.com/gofiber/fiber/v2"
)

// submissionBody tolerates both historical recommendation shapes: the direct
// restaurant_id link and the older embedded-list payload. Both normalize to
// one entity id here, at the boundary — the engine only ever sees one shape.
type submissionBody struct {
	BountyID     string `json:"bounty_id"`
	RestaurantID string `json:"restaurant_id"`
	Rationale    string `json:"rationale"`

	Recommendations []struct {
		RestaurantID string `json:"restaurant_id"`
	} `json:"recommendations,omitempty"`
}

func (b *submissionBody) entityID() string {
	if b.RestaurantID != "" {
		return b.RestaurantID
	}
	if len(b.Recommendations) > 0 {
		return b.Recommendations[0].RestaurantID
	}
	return ""
}

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService) {
	secured := app.Group("/bounty", middleware.UserContextMiddleware())

	secured.Post("/create", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			Stake       float64   `json:"stake"`
			ExpiresAt   time.Time `json:"expires_at"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Title == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
		}

		bounty, err := bountyService.Create(userID, req.Title, req.Description,
			utils.ToBaseUnits(req.Stake), req.ExpiresAt)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(bounty)
	})

	secured.Get("/list", func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		size := c.QueryInt("size", 20)
		bounties, total, err := bountyService.List(c.Query("status"), page, size)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"bounties": bounties,
			"total":    total,
			"page":     page,
			"size":     size,
		})
	})

	secured.Post("/submit", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req submissionBody
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		entityID := req.entityID()
		if req.BountyID == "" || entityID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bounty_id and restaurant_id are required"})
		}

		submission, err := bountyService.Submit(req.BountyID, userID, entityID, req.Rationale)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(submission)
	})

	secured.Post("/award", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			BountyID     string `json:"bounty_id"`
			RestaurantID string `json:"restaurant_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.BountyID == "" || req.RestaurantID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bounty_id and restaurant_id are required"})
		}

		winner, err := bountyService.Award(c.Context(), req.BountyID, userID, req.RestaurantID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "Bounty awarded", "winning_submission": winner})
	})

	secured.Post("/tip", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			BountyID   string  `json:"bounty_id"`
			ResponseID string  `json:"response_id"`
			Amount     float64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if err := bountyService.Tip(req.BountyID, userID, req.ResponseID, utils.ToBaseUnits(req.Amount)); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "Tip sent"})
	})

	secured.Post("/refund", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			BountyID string `json:"bounty_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if err := bountyService.Refund(req.BountyID, userID); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "Stake refunded"})
	})

	secured.Delete("/:id", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		if err := bountyService.Cancel(c.Params("id"), userID); err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"message": "Bounty cancelled"})
	})

	// Keep the param route last so /list etc. resolve first.
	secured.Get("/:id", func(c *fiber.Ctx) error {
		bounty, err := bountyService.Get(c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(bounty)
	})
}

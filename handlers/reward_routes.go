// handlers/reward_routes.go
package handlers

import (
	"content-reward-system/middleware"
	"content-reward-system/models"
	"content-reward-system/services"
	"content-reward-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService, ledger *services.LedgerService) {
	// User-context middleware is attached per route here, not on a group:
	// /rewards/award is service-to-service and must stay reachable without
	// end-user headers.
	userCtx := middleware.UserContextMiddleware()

	app.Get("/balance", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		balance, err := ledger.Balance(userID)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"balance":      utils.ToDisplayUnits(balance),
			"balance_base": balance,
		})
	})

	app.Get("/rewards/pending", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		pendings, err := rewardService.PendingFor(userID)
		if err != nil {
			return errorResponse(c, err)
		}
		var total int64
		for _, p := range pendings {
			total += p.AmountBase
		}
		return c.JSON(fiber.Map{
			"pending":       pendings,
			"total_base":    total,
			"total_display": utils.ToDisplayUnits(total),
		})
	})

	app.Get("/rewards/history", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		events, err := rewardService.History(userID, c.QueryInt("limit", 50))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(events)
	})

	app.Post("/rewards/claim-pending", userCtx, func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			WalletAddress string `json:"wallet_address"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.WalletAddress == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "wallet_address is required"})
		}

		result, err := rewardService.ClaimPending(c.Context(), userID, req.WalletAddress)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(result)
	})

	// Service-to-service: the content service reports rewardable actions here.
	// Gateway auth already gates it; no end-user context is required.
	app.Post("/rewards/award", func(c *fiber.Ctx) error {
		var req struct {
			UserID      string `json:"user_id"`
			Action      string `json:"action"`
			EngagerTier string `json:"engager_tier,omitempty"`
			Ref         string `json:"ref,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.UserID == "" || req.Action == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and action are required"})
		}
		if !models.ValidRewardAction(req.Action) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown reward action"})
		}
		// Escrow releases carry their amount from the bounty/lottery engines
		// internally; they are not reportable over the wire.
		if action := models.RewardAction(req.Action); action == models.ActionBountyPayout || action == models.ActionLotteryPrize {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "direct payout actions cannot be reported here"})
		}

		meta := services.RewardMeta{Ref: req.Ref}
		if req.EngagerTier != "" {
			if !models.ValidTrustTier(req.EngagerTier) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid engager_tier"})
			}
			tier := models.TrustTier(req.EngagerTier)
			meta.EngagerTier = &tier
		}

		result, err := rewardService.Award(c.Context(), req.UserID, models.RewardAction(req.Action), meta)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{
			"status":         result.Status,
			"eligible":       result.Status != services.RewardNotEligible,
			"amount":         utils.ToDisplayUnits(result.AmountBase),
			"amount_base":    result.AmountBase,
			"reason":         result.Reason,
			"cooldown_secs":  result.CooldownRemaining,
			"tx_digest":      result.TxDigest,
		})
	})
}

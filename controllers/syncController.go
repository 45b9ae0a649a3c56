package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tirta-backend/cache"
	"tirta-backend/syncer"
)

type SyncController struct {
	Manager *syncer.Manager
	Store   *cache.Store
}

func NewSyncController(manager *syncer.Manager, store *cache.Store) *SyncController {
	return &SyncController{Manager: manager, Store: store}
}

// Run triggers one sync cycle.
func (ctl *SyncController) Run(c *fiber.Ctx) error {
	report, err := ctl.Manager.Sync(c.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "sync manager is offline"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(report)
}

// Status reports manager state, queue depth and dead letters.
func (ctl *SyncController) Status(c *fiber.Ctx) error {
	return c.JSON(ctl.Manager.Status())
}

type onlineDTO struct {
	Online bool `json:"online"`
}

// SetOnline flips the connectivity signal. Coming back online runs a sync.
func (ctl *SyncController) SetOnline(c *fiber.Ctx) error {
	var dto onlineDTO
	if err := c.BodyParser(&dto); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := ctl.Manager.SetOnline(c.Context(), dto.Online); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "reconnect sync failed",
			"error":   err.Error(),
			"status":  ctl.Manager.Status(),
		})
	}
	return c.JSON(ctl.Manager.Status())
}

// DeadLetters lists writes that exhausted their retry budget, for manual
// review and re-entry.
func (ctl *SyncController) DeadLetters(c *fiber.Ctx) error {
	letters, err := ctl.Store.DeadLetters()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"dead_letters": letters,
		"message":      "success",
	})
}

package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tirta-backend/database"
	"tirta-backend/middlewares"
	"tirta-backend/models"
	"tirta-backend/syncer"
	"tirta-backend/utils"
	"tirta-backend/validation"
)

type DiscountController struct {
	Engine  *validation.Engine
	Manager *syncer.Manager
}

func NewDiscountController(engine *validation.Engine, manager *syncer.Manager) *DiscountController {
	return &DiscountController{Engine: engine, Manager: manager}
}

type discountDTO struct {
	CustomerId         string  `json:"customer_id" validate:"required,uuid4"`
	DiscountPercentage float64 `json:"discount_percentage" validate:"min=0,max=100"`
	DiscountAmount     int64   `json:"discount_amount" validate:"min=0"`
	Reason             string  `json:"reason" validate:"required"`
	DiscountMonth      string  `json:"discount_month" validate:"required"`
}

func (ctl *DiscountController) Create(c *fiber.Ctx) error {
	var dto discountDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	createdBy, _ := c.Locals("userID").(string)
	discount := models.CustomerDiscount{
		CustomerId:         dto.CustomerId,
		DiscountPercentage: dto.DiscountPercentage,
		DiscountAmount:     dto.DiscountAmount,
		Reason:             dto.Reason,
		DiscountMonth:      dto.DiscountMonth,
		IsActive:           true,
		CreatedBy:          createdBy,
		CreatedAt:          time.Now(),
	}

	res, err := ctl.Engine.ValidateDiscount(&discount, "")
	if err != nil {
		return err
	}
	if !res.IsValid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}

	if err := discount.BeforeCreate(nil); err != nil {
		return err
	}
	queued, err := ctl.Manager.SubmitDiscount(c.Context(), &discount)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"discount": discount,
		"queued":   queued,
	})
}

func (ctl *DiscountController) List(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	q := db.Model(&models.CustomerDiscount{})
	if customerId := c.Query("customer_id"); customerId != "" {
		q = q.Where("customer_id = ?", customerId)
	}
	if month := c.Query("month"); month != "" {
		q = q.Where("discount_month = ?", month)
	}
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}

	var discounts []models.CustomerDiscount
	if err := q.Order("discount_month DESC").Find(&discounts).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list discounts",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"discounts": discounts,
		"message":   "success",
	})
}

// Deactivate revokes a discount. Discounts are never hard-deleted.
func (ctl *DiscountController) Deactivate(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var discount models.CustomerDiscount
	if err := db.First(&discount, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "discount not found"})
	}

	discount.IsActive = false
	queued, err := ctl.Manager.SubmitDiscount(c.Context(), &discount)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"discount": discount,
		"queued":   queued,
	})
}

package controllers

import (
	"github.com/gofiber/fiber/v2"

	"tirta-backend/database"
	"tirta-backend/middlewares"
	"tirta-backend/models"
	"tirta-backend/syncer"
	"tirta-backend/utils"
	"tirta-backend/validation"
)

type CustomerController struct {
	Engine  *validation.Engine
	Manager *syncer.Manager
}

func NewCustomerController(engine *validation.Engine, manager *syncer.Manager) *CustomerController {
	return &CustomerController{Engine: engine, Manager: manager}
}

type createCustomerDTO struct {
	Name  string `json:"name" validate:"required,min=2"`
	RT    string `json:"rt" validate:"required"`
	Phone string `json:"phone"`
}

type updateCustomerDTO struct {
	Name  *string `json:"name"`
	RT    *string `json:"rt"`
	Phone *string `json:"phone"`
}

func (ctl *CustomerController) Create(c *fiber.Ctx) error {
	var dto createCustomerDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	customer := models.Customer{
		Name:   dto.Name,
		RT:     dto.RT,
		Phone:  dto.Phone,
		Active: true,
	}

	if res := ctl.Engine.ValidateCustomer(&customer); !res.IsValid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}

	// Assign the id here; the submit path may only reach the queue.
	if err := customer.BeforeCreate(nil); err != nil {
		return err
	}
	queued, err := ctl.Manager.SubmitCustomer(c.Context(), &customer)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"customer": customer,
		"queued":   queued,
	})
}

func (ctl *CustomerController) List(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	q := db.Model(&models.Customer{}).Where("active = ?", true)
	if rt := c.Query("rt"); rt != "" {
		q = q.Where("rt = ?", rt)
	}

	var customers []models.Customer
	if err := q.Order("rt, name").Find(&customers).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list customers",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"customers": customers,
		"message":   "success",
	})
}

func (ctl *CustomerController) Get(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "customer not found"})
	}
	return c.JSON(customer)
}

func (ctl *CustomerController) Update(c *fiber.Ctx) error {
	var dto updateCustomerDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "customer not found"})
	}

	if dto.Name != nil {
		customer.Name = *dto.Name
	}
	if dto.RT != nil {
		customer.RT = *dto.RT
	}
	if dto.Phone != nil {
		customer.Phone = *dto.Phone
	}

	if res := ctl.Engine.ValidateCustomer(&customer); !res.IsValid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}

	queued, err := ctl.Manager.SubmitCustomer(c.Context(), &customer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"customer": customer,
		"queued":   queued,
	})
}

// Delete deactivates a customer. Records stay for old reports.
func (ctl *CustomerController) Delete(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "customer not found"})
	}

	customer.Active = false
	queued, err := ctl.Manager.SubmitCustomer(c.Context(), &customer)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "customer deactivated",
		"queued":  queued,
	})
}

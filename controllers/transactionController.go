package controllers

import (
	"github.com/gofiber/fiber/v2"

	"tirta-backend/database"
	"tirta-backend/middlewares"
	"tirta-backend/models"
)

type categoryDTO struct {
	Name string `json:"name" validate:"required,min=2"`
	Kind string `json:"kind" validate:"required,oneof=income expense"`
}

type transactionDTO struct {
	CategoryId string `json:"category_id" validate:"required,uuid4"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Note       string `json:"note"`
}

func CreateCategory(c *fiber.Ctx) error {
	var dto categoryDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	category := models.TransactionCategory{Name: dto.Name, Kind: dto.Kind}
	if err := db.Create(&category).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not create category",
			"error":   err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func GetCategories(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var categories []models.TransactionCategory
	if err := db.Order("kind, name").Find(&categories).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list categories",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"categories": categories,
		"message":    "success",
	})
}

func CreateTransaction(c *fiber.Ctx) error {
	var dto transactionDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	createdBy, _ := c.Locals("userID").(string)
	transaction := models.FinancialTransaction{
		CategoryId: dto.CategoryId,
		Amount:     dto.Amount,
		Date:       dto.Date,
		Note:       dto.Note,
		CreatedBy:  createdBy,
	}
	if err := db.Create(&transaction).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not create transaction",
			"error":   err.Error(),
		})
	}

	db.Preload("Category").First(&transaction, "id = ?", transaction.Id)
	return c.Status(fiber.StatusCreated).JSON(transaction)
}

func GetTransactions(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	q := db.Model(&models.FinancialTransaction{}).Preload("Category")
	if month := c.Query("month"); month != "" {
		q = q.Where("date >= ? AND date <= ?", month+"-01", month+"-31")
	}
	if categoryId := c.Query("category_id"); categoryId != "" {
		q = q.Where("category_id = ?", categoryId)
	}

	var transactions []models.FinancialTransaction
	if err := q.Order("date DESC").Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list transactions",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"transactions": transactions,
		"message":      "success",
	})
}

// GetTransactionSummary totals the ledger per category kind for one month.
func GetTransactionSummary(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	month := c.Query("month")
	if month == "" {
		return fiber.NewError(fiber.StatusBadRequest, "month query parameter is required (YYYY-MM)")
	}

	type kindTotal struct {
		Kind  string `json:"kind"`
		Total int64  `json:"total"`
	}
	var totals []kindTotal
	err = db.Model(&models.FinancialTransaction{}).
		Select("transaction_categories.kind AS kind, COALESCE(SUM(financial_transactions.amount), 0) AS total").
		Joins("JOIN transaction_categories ON transaction_categories.id = financial_transactions.category_id").
		Where("financial_transactions.date >= ? AND financial_transactions.date <= ?", month+"-01", month+"-31").
		Group("transaction_categories.kind").
		Scan(&totals).Error
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not summarize transactions",
			"error":   err.Error(),
		})
	}

	var income, expense int64
	for _, t := range totals {
		switch t.Kind {
		case "income":
			income = t.Total
		case "expense":
			expense = t.Total
		}
	}
	return c.JSON(fiber.Map{
		"month":   month,
		"income":  income,
		"expense": expense,
		"balance": income - expense,
	})
}

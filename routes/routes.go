package routes

import (
	"github.com/gofiber/fiber/v2"

	"tirta-backend/controllers"
	"tirta-backend/middlewares"
)

// Set bundles the controllers main constructs once at startup.
type Set struct {
	Customers *controllers.CustomerController
	Readings  *controllers.ReadingController
	Discounts *controllers.DiscountController
	Reports   *controllers.ReportController
	Sync      *controllers.SyncController
}

// Register wires all HTTP routes.
func Register(app *fiber.App, ctl Set) {
	api := app.Group("/api")

	// Public auth endpoints (registration bootstraps the first admin)
	api.Post("/registration", controllers.Register)
	api.Post("/login", controllers.Login)
	api.Post("/logout", controllers.Logout)

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then per-request transaction (commits/rolls back around the handler)
	protected.Use(middlewares.RequestTx())

	// Account management (admin only)
	protected.Post("/users", middlewares.RequireAdmin(), controllers.Register)

	// Customers
	protected.Post("/customer", ctl.Customers.Create)
	protected.Get("/customers", ctl.Customers.List)
	protected.Get("/customer/:id", ctl.Customers.Get)
	protected.Put("/customer/:id", ctl.Customers.Update)
	protected.Delete("/customer/:id", middlewares.RequireAdmin(), ctl.Customers.Delete)

	// Meter readings
	protected.Post("/reading", ctl.Readings.Create)
	protected.Get("/readings", ctl.Readings.List)
	protected.Put("/reading/:id", ctl.Readings.Update)
	protected.Delete("/reading/:id", middlewares.RequireAdmin(), ctl.Readings.Delete)
	protected.Get("/reading/:id/revisions", ctl.Readings.Revisions)

	// Discounts (admin only)
	protected.Post("/discount", middlewares.RequireAdmin(), ctl.Discounts.Create)
	protected.Get("/discounts", ctl.Discounts.List)
	protected.Put("/discount/:id/deactivate", middlewares.RequireAdmin(), ctl.Discounts.Deactivate)

	// Financial ledger
	protected.Post("/category", middlewares.RequireAdmin(), controllers.CreateCategory)
	protected.Get("/categories", controllers.GetCategories)
	protected.Post("/transaction", controllers.CreateTransaction)
	protected.Get("/transactions", controllers.GetTransactions)
	protected.Get("/transactions/summary", controllers.GetTransactionSummary)

	// Reports
	protected.Get("/reports/billing", ctl.Reports.Billing)
	protected.Get("/reports/billing/csv", ctl.Reports.BillingCSV)
	protected.Get("/reports/transform", ctl.Reports.Transform)

	// Sync
	protected.Post("/sync", ctl.Sync.Run)
	protected.Get("/sync/status", ctl.Sync.Status)
	protected.Post("/sync/online", ctl.Sync.SetOnline)
	protected.Get("/sync/dead-letters", middlewares.RequireAdmin(), ctl.Sync.DeadLetters)
}

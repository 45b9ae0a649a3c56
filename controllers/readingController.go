package controllers

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tirta-backend/billing"
	"tirta-backend/cache"
	"tirta-backend/database"
	"tirta-backend/middlewares"
	"tirta-backend/models"
	"tirta-backend/syncer"
	"tirta-backend/validation"
)

type ReadingController struct {
	Engine     *validation.Engine
	Manager    *syncer.Manager
	Calculator *billing.Calculator
	Store      *cache.Store
}

func NewReadingController(engine *validation.Engine, manager *syncer.Manager, calc *billing.Calculator, store *cache.Store) *ReadingController {
	return &ReadingController{Engine: engine, Manager: manager, Calculator: calc, Store: store}
}

type readingDTO struct {
	CustomerId string `json:"customer_id" validate:"required,uuid4"`
	Reading    int64  `json:"reading" validate:"min=0"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
}

// Create validates and submits a new monthly reading. Rule violations come
// back as 422 with the full result; warnings ride along on success and
// never block.
func (ctl *ReadingController) Create(c *fiber.Ctx) error {
	var dto readingDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	res, err := ctl.Engine.ValidateMeterReading(dto.CustomerId, dto.Reading, dto.Date, "")
	if err != nil {
		return err
	}
	if !res.IsValid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}

	reading := models.MeterReading{
		CustomerId: dto.CustomerId,
		Reading:    dto.Reading,
		Date:       dto.Date,
	}
	if err := reading.BeforeCreate(nil); err != nil {
		return err
	}

	queued, err := ctl.Manager.SubmitReading(c.Context(), &reading)
	if err != nil {
		return err
	}

	usage, bill := ctl.preview(&reading)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reading":  reading,
		"warnings": res.Warnings,
		"usage":    usage,
		"billing":  bill,
		"queued":   queued,
	})
}

// Update edits a stored reading. The pre-edit state is kept as a revision
// snapshot; validation excludes the edited reading itself.
func (ctl *ReadingController) Update(c *fiber.Ctx) error {
	var dto readingDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var existing models.MeterReading
	if err := db.First(&existing, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "reading not found"})
	}

	res, err := ctl.Engine.ValidateMeterReading(dto.CustomerId, dto.Reading, dto.Date, existing.Id)
	if err != nil {
		return err
	}
	if !res.IsValid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}

	ctl.snapshotRevision(c, db, &existing)

	existing.CustomerId = dto.CustomerId
	existing.Reading = dto.Reading
	existing.Date = dto.Date

	queued, err := ctl.Manager.SubmitReading(c.Context(), &existing)
	if err != nil {
		return err
	}

	usage, bill := ctl.preview(&existing)
	return c.JSON(fiber.Map{
		"reading":  existing,
		"warnings": res.Warnings,
		"usage":    usage,
		"billing":  bill,
		"queued":   queued,
	})
}

func (ctl *ReadingController) List(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	q := db.Model(&models.MeterReading{})
	if customerId := c.Query("customer_id"); customerId != "" {
		q = q.Where("customer_id = ?", customerId)
	}
	if month := c.Query("month"); month != "" {
		q = q.Where("date >= ? AND date <= ?", month+"-01", month+"-31")
	}

	var readings []models.MeterReading
	if err := q.Order("date").Find(&readings).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list readings",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"readings": readings,
		"message":  "success",
	})
}

// Delete removes a mis-entered reading. The pre-delete state is kept as
// a revision, so the audit trail survives the row.
func (ctl *ReadingController) Delete(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var existing models.MeterReading
	if err := db.First(&existing, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "reading not found"})
	}

	ctl.snapshotRevision(c, db, &existing)

	if err := db.Delete(&models.MeterReading{}, "id = ?", existing.Id).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not delete reading",
			"error":   err.Error(),
		})
	}
	if err := ctl.Store.DeleteReading(existing.Id); err != nil {
		log.Printf("cache delete reading %s: %v", existing.Id, err)
	}
	return c.JSON(fiber.Map{"message": "reading deleted"})
}

func (ctl *ReadingController) Revisions(c *fiber.Ctx) error {
	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var revisions []models.ReadingRevision
	if err := db.Where("reading_id = ?", c.Params("id")).Order("version_no").Find(&revisions).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not list revisions",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"revisions": revisions,
		"message":   "success",
	})
}

// preview recomputes derived values for the response; failures only cost
// the preview, never the submission.
func (ctl *ReadingController) preview(r *models.MeterReading) (*billing.UsageCalculation, *billing.BillingCalculation) {
	usage, err := ctl.Calculator.CalculateUsage(r.CustomerId, r.Reading, r.Date, nil)
	if err != nil {
		log.Printf("usage preview for %s: %v", r.Id, err)
		return nil, nil
	}
	bill, err := ctl.Calculator.CalculateBilling(r.CustomerId, usage.Usage, r.Date)
	if err != nil {
		log.Printf("billing preview for %s: %v", r.Id, err)
		return usage, nil
	}
	return usage, bill
}

// snapshotRevision stores the pre-edit state. Best-effort: a failed
// snapshot is logged, it does not block the edit.
func (ctl *ReadingController) snapshotRevision(c *fiber.Ctx, db *gorm.DB, existing *models.MeterReading) {
	snap, err := json.Marshal(existing)
	if err != nil {
		log.Printf("snapshot reading %s: %v", existing.Id, err)
		return
	}

	var versionNo int
	db.Model(&models.ReadingRevision{}).
		Where("reading_id = ?", existing.Id).
		Select("COALESCE(MAX(version_no), 0)").
		Scan(&versionNo)

	editedBy, _ := c.Locals("userID").(string)
	rev := models.ReadingRevision{
		ReadingId: existing.Id,
		VersionNo: versionNo + 1,
		Snapshot:  datatypes.JSON(snap),
		EditedBy:  editedBy,
	}
	if err := db.Create(&rev).Error; err != nil {
		log.Printf("snapshot reading %s: %v", existing.Id, err)
	}
}

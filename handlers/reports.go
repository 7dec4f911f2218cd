package handlers

import (
	"context"
	"strings"

	"bounty-platform/logging"
	"bounty-platform/models"
	"bounty-platform/services"
	"bounty-platform/storage"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	Reports *services.ReportService
	Store   storage.AttachmentStore
	Log     logging.Logger
}

func SetupReportRoutes(r fiber.Router, h *ReportHandler) {
	r.Post("/reports", h.Submit)
	r.Get("/reports/mine", h.ListMine)
	r.Get("/reports/company", h.ListForCompany)
	r.Get("/reports/:id", h.Get)
	r.Put("/reports/:id/status", h.UpdateStatus)
}

// Submit takes a multipart form: program, title, description, severity, file.
func (h *ReportHandler) Submit(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	if !services.CanSubmitReport(a) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only hackers can submit reports"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a report attachment is required"})
	}

	ctx := c.UserContext()
	key := storage.AttachmentKey(a.UserID, fh.Filename)
	url, err := h.Store.Save(ctx, fh, key)
	if err != nil {
		h.Log.Error(ctx, "attachment upload failed", "user_id", a.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store attachment"})
	}

	report, err := h.Reports.Submit(ctx, a, services.SubmitReportInput{
		ProgramID:   c.FormValue("program"),
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Severity:    models.Severity(c.FormValue("severity")),
		FileURL:     url,
		FileName:    fh.Filename,
	})
	if err != nil {
		if derr := h.Store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			h.Log.Warn(ctx, "orphaned attachment", "key", key, "error", derr)
		}
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ReportHandler) ListMine(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	reports, err := h.Reports.ListMine(c.UserContext(), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

func (h *ReportHandler) ListForCompany(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	reports, err := h.Reports.ListForCompany(c.UserContext(), a)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

func (h *ReportHandler) Get(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	report, err := h.Reports.Get(c.UserContext(), a, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

type statusRequest struct {
	Status      string  `json:"status"`
	Reward      float64 `json:"reward"`
	ReviewNotes string  `json:"review_notes"`
}

func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	a, err := actor(c)
	if err != nil {
		return respondError(c, err)
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if strings.TrimSpace(req.Status) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status is required"})
	}

	res, err := h.Reports.UpdateStatus(c.UserContext(), a, c.Params("id"), services.StatusUpdate{
		Status:      models.ReportStatus(req.Status),
		Reward:      req.Reward,
		ReviewNotes: req.ReviewNotes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

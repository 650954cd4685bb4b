package handlers

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/internal/storage"
)

type ScheduleHandler struct {
	scheduleService *services.PaymentScheduleService
	dealService     *services.DealService
	receipts        *storage.LocalStorage
}

func NewScheduleHandler(scheduleService *services.PaymentScheduleService, dealService *services.DealService, receipts *storage.LocalStorage) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService, dealService: dealService, receipts: receipts}
}

// GenerateScheduleRequest takes explicit instalments, or a count and first
// due date from which the instalments are planned.
type GenerateScheduleRequest struct {
	Instalments []services.InstalmentInput `json:"instalments"`
	Count       int                        `json:"count"`
	FirstDue    models.Date                `json:"first_due_date"`
}

// @Summary Generate Payment Schedule
// @Description Attach an instalment plan to an active deal. Instalments must sum to the agreed price.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Param request body GenerateScheduleRequest true "Instalments"
// @Success 201 {object} models.PaymentScheduleResponse
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/schedule [post]
func (h *ScheduleHandler) Generate(c *gin.Context) {
	var req GenerateScheduleRequest
	if !bindBody(c, "schedule", &req) {
		return
	}

	ctx := c.Request.Context()
	dealID := c.Param("deal_id")

	instalments := req.Instalments
	if len(instalments) == 0 {
		deal, err := h.dealService.GetDeal(ctx, dealID)
		if err != nil {
			respondError(c, err)
			return
		}
		firstDue := req.FirstDue
		if firstDue.IsZero() {
			firstDue = h.scheduleService.Today()
		}
		instalments, err = services.PlanInstalments(deal.AgreedPrice, req.Count, firstDue)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	schedule, err := h.scheduleService.GenerateSchedule(ctx, dealID, instalments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"schedule": schedule.ToResponse(h.scheduleService.Today())})
}

// @Summary Get Deal Schedule
// @Tags Schedules
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Success 200 {object} models.PaymentScheduleResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/schedule [get]
func (h *ScheduleHandler) ShowForDeal(c *gin.Context) {
	schedule, err := h.scheduleService.GetScheduleByDeal(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule.ToResponse(h.scheduleService.Today())})
}

// @Summary Get Schedule
// @Tags Schedules
// @Produce json
// @Param schedule_id path string true "Schedule ID"
// @Success 200 {object} models.PaymentScheduleResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /schedules/{schedule_id} [get]
func (h *ScheduleHandler) Show(c *gin.Context) {
	schedule, err := h.scheduleService.GetSchedule(c.Request.Context(), c.Param("schedule_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule.ToResponse(h.scheduleService.Today())})
}

type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate models.Date     `json:"payment_date"`
	Method      string          `json:"method"`
	ReceiptRef  string          `json:"receipt_ref"`
	Notes       string          `json:"notes"`
}

// @Summary Record Payment
// @Description Record a payment against one instalment. Overpayment is rejected.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param schedule_id path string true "Schedule ID"
// @Param instalment_id path string true "Instalment ID"
// @Param request body RecordPaymentRequest true "Payment"
// @Success 200 {object} models.PaymentScheduleResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /schedules/{schedule_id}/instalments/{instalment_id}/payments [post]
func (h *ScheduleHandler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if !bindBody(c, "payment", &req) {
		return
	}
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = h.scheduleService.Today()
	}

	schedule, err := h.scheduleService.RecordPayment(c.Request.Context(), services.RecordPaymentInput{
		ScheduleID:   c.Param("schedule_id"),
		InstalmentID: c.Param("instalment_id"),
		Amount:       req.Amount,
		PaymentDate:  paymentDate,
		Method:       req.Method,
		ReceiptRef:   req.ReceiptRef,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule.ToResponse(h.scheduleService.Today())})
}

// @Summary Overdue Instalments
// @Tags Schedules
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /schedules/overdue [get]
func (h *ScheduleHandler) Overdue(c *gin.Context) {
	overdue, err := h.scheduleService.ListOverdue(c.Request.Context(), h.scheduleService.Today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdue": overdue, "total": len(overdue)})
}

// @Summary Upload Payment Receipt
// @Description Store a receipt file for a schedule. The returned receipt_ref is passed to Record Payment.
// @Tags Schedules
// @Accept multipart/form-data
// @Produce json
// @Param schedule_id path string true "Schedule ID"
// @Param receipt formData file true "Receipt file (PDF, JPEG, PNG)"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /schedules/{schedule_id}/receipts [post]
func (h *ScheduleHandler) UploadReceipt(c *gin.Context) {
	schedule, err := h.scheduleService.GetSchedule(c.Request.Context(), c.Param("schedule_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt file is required"})
		return
	}
	defer file.Close()

	if header.Size > storage.MaxFileSize() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
		return
	}
	if !storage.IsValidContentType(header.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type. Allowed: PDF, JPEG, PNG"})
		return
	}

	ref, err := h.receipts.Save(file, header.Filename, path.Join("receipts", schedule.ID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"receipt_ref": ref})
}

// @Summary Download Payment Receipt
// @Tags Schedules
// @Produce octet-stream
// @Param schedule_id path string true "Schedule ID"
// @Param ref query string true "Receipt reference"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /schedules/{schedule_id}/receipts [get]
func (h *ScheduleHandler) DownloadReceipt(c *gin.Context) {
	scheduleID := c.Param("schedule_id")
	ref := c.Query("ref")
	if !strings.HasPrefix(ref, path.Join("receipts", scheduleID)+"/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
		return
	}

	f, err := h.receipts.Open(ref)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) || errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "receipt not found"})
			return
		}
		respondError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondError(c, err)
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(ref), f, map[string]string{
		"Content-Disposition": `attachment; filename="` + path.Base(ref) + `"`,
	})
}

func contentTypeFor(ref string) string {
	switch strings.ToLower(path.Ext(ref)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type CommissionHandler struct {
	commissionService *services.CommissionService
}

func NewCommissionHandler(commissionService *services.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissionService: commissionService}
}

// @Summary List Commission Entries
// @Description Every split entry across deals, optionally by status
// @Tags Commissions
// @Produce json
// @Param status query string false "pending, approved, paid"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /commissions [get]
func (h *CommissionHandler) Index(c *gin.Context) {
	lines, err := h.commissionService.ListEntries(c.Request.Context(), models.CommissionStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": lines, "total": len(lines)})
}

// @Summary Approve Commission Entry
// @Tags Commissions
// @Produce json
// @Param entry_id path string true "Split entry ID"
// @Success 200 {object} models.CommissionSplitEntry
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /commissions/{entry_id}/approve [post]
func (h *CommissionHandler) Approve(c *gin.Context) {
	entry, err := h.commissionService.Approve(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

type RejectCommissionRequest struct {
	Reason string `json:"reason"`
}

// @Summary Reject Commission Entry
// @Tags Commissions
// @Accept json
// @Produce json
// @Param entry_id path string true "Split entry ID"
// @Param request body RejectCommissionRequest true "Reason"
// @Success 200 {object} models.CommissionSplitEntry
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /commissions/{entry_id}/reject [post]
func (h *CommissionHandler) Reject(c *gin.Context) {
	var req RejectCommissionRequest
	if !bindBody(c, "commission", &req) {
		return
	}
	entry, err := h.commissionService.Reject(c.Request.Context(), c.Param("entry_id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

type OverrideCommissionRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// @Summary Override Commission Entry
// @Description Replace the amount of an entry. The first computed amount is kept.
// @Tags Commissions
// @Accept json
// @Produce json
// @Param entry_id path string true "Split entry ID"
// @Param request body OverrideCommissionRequest true "Override"
// @Success 200 {object} models.CommissionSplitEntry
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /commissions/{entry_id}/override [post]
func (h *CommissionHandler) Override(c *gin.Context) {
	var req OverrideCommissionRequest
	if !bindBody(c, "commission", &req) {
		return
	}
	entry, err := h.commissionService.Override(c.Request.Context(), c.Param("entry_id"), req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// @Summary Mark Commission Entry Paid
// @Tags Commissions
// @Produce json
// @Param entry_id path string true "Split entry ID"
// @Success 200 {object} models.CommissionSplitEntry
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /commissions/{entry_id}/mark_paid [post]
func (h *CommissionHandler) MarkPaid(c *gin.Context) {
	entry, err := h.commissionService.MarkPaid(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

type BulkCommissionRequest struct {
	EntryIDs []string `json:"entry_ids" binding:"required"`
	Reason   string   `json:"reason"`
}

// @Summary Bulk Commission Action
// @Description Apply approve, reject or mark_paid to several entries. Each entry commits on its own.
// @Tags Commissions
// @Accept json
// @Produce json
// @Param action path string true "approve, reject or mark_paid"
// @Param request body BulkCommissionRequest true "Entries"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /commissions/bulk/{action} [post]
func (h *CommissionHandler) Bulk(c *gin.Context) {
	var req BulkCommissionRequest
	if !bindBody(c, "commission", &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		results []services.BulkResult
		err     error
	)
	switch c.Param("action") {
	case "approve":
		results, err = h.commissionService.BulkApprove(ctx, req.EntryIDs)
	case "reject":
		results, err = h.commissionService.BulkReject(ctx, req.EntryIDs, req.Reason)
	case "mark_paid":
		results, err = h.commissionService.BulkMarkPaid(ctx, req.EntryIDs)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bulk action " + c.Param("action")})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	succeeded := 0
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		item := gin.H{"entry_id": r.EntryID, "ok": r.OK()}
		if r.OK() {
			succeeded++
			item["entry"] = r.Entry
		} else {
			item["error"] = r.Err.Error()
			item["status"] = statusFor(r.Err)
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{
		"results":   out,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

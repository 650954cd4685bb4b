package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type DealHandler struct {
	dealService       *services.DealService
	commissionService *services.CommissionService
	auditService      *services.AuditService
}

func NewDealHandler(dealService *services.DealService, commissionService *services.CommissionService, auditService *services.AuditService) *DealHandler {
	return &DealHandler{dealService: dealService, commissionService: commissionService, auditService: auditService}
}

// @Summary List Deals
// @Description List deals. Agents only see deals they take part in.
// @Tags Deals
// @Produce json
// @Param status query string false "active, completed, cancelled"
// @Param agent_id query string false "Listing or buying agent (admin only)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /deals [get]
func (h *DealHandler) Index(c *gin.Context) {
	agentID := c.Query("agent_id")
	if !middleware.IsAdmin(c) {
		agentID = middleware.GetUserID(c)
	}
	deals, err := h.dealService.ListDeals(c.Request.Context(), models.DealStatus(c.Query("status")), agentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals, "total": len(deals)})
}

// @Summary Get Deal
// @Tags Deals
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Success 200 {object} models.Deal
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id} [get]
func (h *DealHandler) Show(c *gin.Context) {
	deal, err := h.dealService.GetDeal(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

// @Summary Deal History
// @Description Audit trail of a deal
// @Tags Deals
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /deals/{deal_id}/history [get]
func (h *DealHandler) History(c *gin.Context) {
	logs, err := h.auditService.ForEntity(c.Request.Context(), "Deal", c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs})
}

// @Summary Complete Deal
// @Description Close the deal. A schedule, when present, must be fully paid.
// @Tags Deals
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Success 200 {object} models.Deal
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/complete [post]
func (h *DealHandler) Complete(c *gin.Context) {
	deal, err := h.dealService.Complete(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

type CancelDealRequest struct {
	Reason string `json:"reason"`
}

// @Summary Cancel Deal
// @Tags Deals
// @Accept json
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Param request body CancelDealRequest false "Reason"
// @Success 200 {object} models.Deal
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/cancel [post]
func (h *DealHandler) Cancel(c *gin.Context) {
	var req CancelDealRequest
	if !bindBody(c, "deal", &req) {
		return
	}
	deal, err := h.dealService.Cancel(c.Request.Context(), c.Param("deal_id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

type SplitShareRequest struct {
	Party      models.SplitParty `json:"party"`
	Percentage decimal.Decimal   `json:"percentage"`
}

type ComputeSplitRequest struct {
	Policy models.SplitPolicy  `json:"policy"`
	Shares []SplitShareRequest `json:"shares"`
}

// @Summary Compute Commission Split
// @Description Replace the split of a deal whose entries are all pending
// @Tags Deals
// @Accept json
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Param request body ComputeSplitRequest true "Split"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/commission [put]
func (h *DealHandler) ComputeSplit(c *gin.Context) {
	var req ComputeSplitRequest
	if !bindBody(c, "commission", &req) {
		return
	}

	shares := make([]services.SplitShare, 0, len(req.Shares))
	for _, s := range req.Shares {
		shares = append(shares, services.SplitShare{Party: s.Party, Percentage: s.Percentage})
	}

	entries, err := h.commissionService.ComputeSplit(c.Request.Context(), c.Param("deal_id"), req.Policy, shares)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// @Summary Get Commission
// @Tags Deals
// @Produce json
// @Param deal_id path string true "Deal ID"
// @Success 200 {object} models.Commission
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /deals/{deal_id}/commission [get]
func (h *DealHandler) Commission(c *gin.Context) {
	deal, err := h.dealService.GetDeal(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commission": deal.Commission, "currency": deal.Currency})
}

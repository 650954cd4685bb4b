package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type OfferHandler struct {
	offerService *services.OfferService
	dealService  *services.DealService
}

func NewOfferHandler(offerService *services.OfferService, dealService *services.DealService) *OfferHandler {
	return &OfferHandler{offerService: offerService, dealService: dealService}
}

// @Summary Get Offer
// @Tags Offers
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Success 200 {object} models.Offer
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id} [get]
func (h *OfferHandler) Show(c *gin.Context) {
	offer, err := h.offerService.GetOffer(c.Request.Context(), c.Param("offer_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

type AdjustOfferRequest struct {
	OfferAmount decimal.Decimal  `json:"offer_amount"`
	TokenAmount *decimal.Decimal `json:"token_amount"`
}

// @Summary Adjust Offer
// @Description Change the amounts of a pending offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Param request body AdjustOfferRequest true "Amounts"
// @Success 200 {object} models.Offer
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id} [put]
func (h *OfferHandler) Adjust(c *gin.Context) {
	var req AdjustOfferRequest
	if !bindBody(c, "offer", &req) {
		return
	}
	offer, err := h.offerService.AdjustOffer(c.Request.Context(), c.Param("offer_id"), req.OfferAmount, req.TokenAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

type AcceptOfferRequest struct {
	ClosingDate *models.Date `json:"closing_date"`
}

// @Summary Accept Offer
// @Description Accept a pending offer. The deal is finalized as part of the same request.
// @Tags Offers
// @Accept json
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Param request body AcceptOfferRequest false "Closing date"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id}/accept [post]
func (h *OfferHandler) Accept(c *gin.Context) {
	var req AcceptOfferRequest
	if !bindBody(c, "offer", &req) {
		return
	}
	result, err := h.offerService.AcceptOffer(c.Request.Context(), c.Param("offer_id"), req.ClosingDate)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"offer": result.Offer, "cycle": result.Cycle}
	if deal, err := h.dealService.GetDeal(c.Request.Context(), services.DealIDForOffer(result.Offer.ID)); err == nil {
		body["deal"] = deal
	}
	c.JSON(http.StatusOK, body)
}

type DecideOfferRequest struct {
	Reason string `json:"reason"`
}

// @Summary Reject Offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Param request body DecideOfferRequest false "Reason"
// @Success 200 {object} models.Offer
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id}/reject [post]
func (h *OfferHandler) Reject(c *gin.Context) {
	var req DecideOfferRequest
	if !bindBody(c, "offer", &req) {
		return
	}
	offer, err := h.offerService.RejectOffer(c.Request.Context(), c.Param("offer_id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// @Summary Withdraw Offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Param request body DecideOfferRequest false "Reason"
// @Success 200 {object} models.Offer
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id}/withdraw [post]
func (h *OfferHandler) Withdraw(c *gin.Context) {
	var req DecideOfferRequest
	if !bindBody(c, "offer", &req) {
		return
	}
	offer, err := h.offerService.WithdrawOffer(c.Request.Context(), c.Param("offer_id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// @Summary Finalize Deal
// @Description Create the deal for an accepted offer. Repeating the call returns the same deal.
// @Tags Deals
// @Produce json
// @Param offer_id path string true "Offer ID"
// @Success 200 {object} models.Deal
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /offers/{offer_id}/finalize [post]
func (h *OfferHandler) Finalize(c *gin.Context) {
	deal, err := h.dealService.Finalize(c.Request.Context(), c.Param("offer_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

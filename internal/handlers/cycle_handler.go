package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type CycleHandler struct {
	cycleService *services.CycleService
	offerService *services.OfferService
}

func NewCycleHandler(cycleService *services.CycleService, offerService *services.OfferService) *CycleHandler {
	return &CycleHandler{cycleService: cycleService, offerService: offerService}
}

type OpenCycleRequest struct {
	Kind        models.CycleKind `json:"kind"`
	AskingPrice decimal.Decimal  `json:"asking_price"`
	AgentID     string           `json:"agent_id"`
}

// @Summary Open Cycle
// @Description Open a sell, purchase or rent cycle on a property
// @Tags Cycles
// @Accept json
// @Produce json
// @Param property_id path string true "Property ID"
// @Param request body OpenCycleRequest true "Cycle"
// @Success 201 {object} models.Cycle
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id}/cycles [post]
func (h *CycleHandler) Open(c *gin.Context) {
	var req OpenCycleRequest
	if !bindBody(c, "cycle", &req) {
		return
	}
	if req.AgentID == "" {
		req.AgentID = middleware.GetUserID(c)
	}
	cycle, err := h.cycleService.OpenCycle(c.Request.Context(), c.Param("property_id"), req.Kind, req.AskingPrice, req.AgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cycle": cycle})
}

// @Summary List Property Cycles
// @Tags Cycles
// @Produce json
// @Param property_id path string true "Property ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /properties/{property_id}/cycles [get]
func (h *CycleHandler) IndexForProperty(c *gin.Context) {
	cycles, err := h.cycleService.ListCycles(c.Request.Context(), c.Param("property_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": cycles, "total": len(cycles)})
}

// @Summary Get Cycle
// @Tags Cycles
// @Produce json
// @Param cycle_id path string true "Cycle ID"
// @Success 200 {object} models.Cycle
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /cycles/{cycle_id} [get]
func (h *CycleHandler) Show(c *gin.Context) {
	cycle, err := h.cycleService.GetCycle(c.Request.Context(), c.Param("cycle_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle": cycle})
}

type CloseCycleRequest struct {
	Outcome models.CycleOutcome `json:"outcome"`
}

// @Summary Close Cycle
// @Description Close a cycle as won or lost. Ownership never changes here.
// @Tags Cycles
// @Accept json
// @Produce json
// @Param cycle_id path string true "Cycle ID"
// @Param request body CloseCycleRequest true "Outcome"
// @Success 200 {object} models.Cycle
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /cycles/{cycle_id}/close [post]
func (h *CycleHandler) Close(c *gin.Context) {
	var req CloseCycleRequest
	if !bindBody(c, "cycle", &req) {
		return
	}
	cycle, err := h.cycleService.CloseCycle(c.Request.Context(), c.Param("cycle_id"), req.Outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycle": cycle})
}

// @Summary List Cycle Offers
// @Tags Cycles
// @Produce json
// @Param cycle_id path string true "Cycle ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /cycles/{cycle_id}/offers [get]
func (h *CycleHandler) Offers(c *gin.Context) {
	offers, err := h.offerService.ListOffers(c.Request.Context(), c.Param("cycle_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers, "total": len(offers)})
}

type SubmitOfferRequest struct {
	Buyer         models.BuyerRef    `json:"buyer"`
	OfferAmount   decimal.Decimal    `json:"offer_amount"`
	TokenAmount   decimal.Decimal    `json:"token_amount"`
	Conditions    string             `json:"conditions"`
	SourceType    models.OfferSource `json:"source_type"`
	BuyingAgentID string             `json:"buying_agent_id"`
}

// @Summary Submit Offer
// @Description Record a buyer's offer on a cycle
// @Tags Offers
// @Accept json
// @Produce json
// @Param cycle_id path string true "Cycle ID"
// @Param request body SubmitOfferRequest true "Offer"
// @Success 201 {object} models.Offer
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /cycles/{cycle_id}/offers [post]
func (h *CycleHandler) SubmitOffer(c *gin.Context) {
	var req SubmitOfferRequest
	if !bindBody(c, "offer", &req) {
		return
	}
	if req.BuyingAgentID == "" {
		req.BuyingAgentID = middleware.GetUserID(c)
	}
	offer, err := h.offerService.SubmitOffer(c.Request.Context(), services.SubmitOfferInput{
		CycleID:       c.Param("cycle_id"),
		Buyer:         req.Buyer,
		OfferAmount:   req.OfferAmount,
		TokenAmount:   req.TokenAmount,
		Conditions:    req.Conditions,
		SourceType:    req.SourceType,
		BuyingAgentID: req.BuyingAgentID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}

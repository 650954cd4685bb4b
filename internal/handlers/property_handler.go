package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type PropertyHandler struct {
	propertyService *services.PropertyService
	cycleService    *services.CycleService
}

func NewPropertyHandler(propertyService *services.PropertyService, cycleService *services.CycleService) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService, cycleService: cycleService}
}

type CreatePropertyRequest struct {
	Address        string                  `json:"address"`
	Area           decimal.Decimal         `json:"area"`
	AreaUnit       string                  `json:"area_unit"`
	ListingAgentID string                  `json:"listing_agent_id"`
	CommissionRate *decimal.Decimal        `json:"commission_rate"`
	Owner          string                  `json:"owner"`
	OwnedSince     models.Date             `json:"owned_since"`
	Identity       models.PropertyIdentity `json:"identity"`
}

// @Summary Register Property
// @Description Register a property in the agency inventory
// @Tags Properties
// @Accept json
// @Produce json
// @Param request body CreatePropertyRequest true "Property"
// @Success 201 {object} models.Property
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
	var req CreatePropertyRequest
	if !bindBody(c, "property", &req) {
		return
	}
	if req.ListingAgentID == "" {
		req.ListingAgentID = middleware.GetUserID(c)
	}

	property, err := h.propertyService.Create(c.Request.Context(), services.CreatePropertyInput{
		Address:        req.Address,
		Area:           req.Area,
		AreaUnit:       req.AreaUnit,
		ListingAgentID: req.ListingAgentID,
		CommissionRate: req.CommissionRate,
		Owner:          req.Owner,
		OwnedSince:     req.OwnedSince,
		Identity:       req.Identity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"property": property})
}

// @Summary List Properties
// @Description List properties filtered by status and identity
// @Tags Properties
// @Produce json
// @Param status query string false "available, under_offer, sold, rented"
// @Param identity query string false "owned or tracked"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /properties [get]
func (h *PropertyHandler) Index(c *gin.Context) {
	properties, err := h.propertyService.List(
		c.Request.Context(),
		models.PropertyStatus(c.Query("status")),
		models.PropertyIdentity(c.Query("identity")),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": properties, "total": len(properties)})
}

// @Summary Get Property
// @Tags Properties
// @Produce json
// @Param property_id path string true "Property ID"
// @Success 200 {object} models.Property
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id} [get]
func (h *PropertyHandler) Show(c *gin.Context) {
	property, err := h.propertyService.Get(c.Request.Context(), c.Param("property_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"property": property})
}

// @Summary Relistable Properties
// @Description Sold agency properties without an open sell cycle. Agents only see their own listings.
// @Tags Properties
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /properties/relistable [get]
func (h *PropertyHandler) Relistable(c *gin.Context) {
	userID := ""
	if !middleware.IsAdmin(c) {
		userID = middleware.GetUserID(c)
	}
	properties, err := h.cycleService.ListRelistable(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": properties, "total": len(properties)})
}

type RelistRequest struct {
	AskingPrice decimal.Decimal `json:"asking_price"`
	AgentID     string          `json:"agent_id"`
}

// @Summary Relist Property
// @Description Open a new sell cycle on a sold property
// @Tags Properties
// @Accept json
// @Produce json
// @Param property_id path string true "Property ID"
// @Param request body RelistRequest true "Relist"
// @Success 201 {object} models.Cycle
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /properties/{property_id}/relist [post]
func (h *PropertyHandler) Relist(c *gin.Context) {
	var req RelistRequest
	if !bindBody(c, "cycle", &req) {
		return
	}
	if req.AgentID == "" {
		req.AgentID = middleware.GetUserID(c)
	}
	cycle, err := h.cycleService.Relist(c.Request.Context(), c.Param("property_id"), req.AskingPrice, req.AgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cycle": cycle})
}

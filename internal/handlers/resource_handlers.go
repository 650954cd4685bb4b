package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// @Summary Health Check
// @Description Checks if the API is running
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fintera-brokerage",
		"version": "1.0.0",
	})
}

type RequirementHandler struct {
	requirementService *services.RequirementService
}

func NewRequirementHandler(requirementService *services.RequirementService) *RequirementHandler {
	return &RequirementHandler{requirementService: requirementService}
}

type CreateRequirementRequest struct {
	BuyerName string           `json:"buyer_name"`
	AgentID   string           `json:"agent_id"`
	Kind      models.CycleKind `json:"kind"`
	Budget    decimal.Decimal  `json:"budget"`
	Notes     string           `json:"notes"`
}

// @Summary Register Buyer Requirement
// @Tags Requirements
// @Accept json
// @Produce json
// @Param request body CreateRequirementRequest true "Requirement"
// @Success 201 {object} models.BuyerRequirement
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /requirements [post]
func (h *RequirementHandler) Create(c *gin.Context) {
	var req CreateRequirementRequest
	if !bindBody(c, "requirement", &req) {
		return
	}
	if req.AgentID == "" {
		req.AgentID = middleware.GetUserID(c)
	}
	requirement, err := h.requirementService.Create(c.Request.Context(), services.CreateRequirementInput{
		BuyerName: req.BuyerName,
		AgentID:   req.AgentID,
		Kind:      req.Kind,
		Budget:    req.Budget,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"requirement": requirement})
}

// @Summary List Buyer Requirements
// @Tags Requirements
// @Produce json
// @Param status query string false "active or acquired"
// @Param agent_id query string false "Agent ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /requirements [get]
func (h *RequirementHandler) Index(c *gin.Context) {
	requirements, err := h.requirementService.List(
		c.Request.Context(),
		models.RequirementStatus(c.Query("status")),
		c.Query("agent_id"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requirements": requirements, "total": len(requirements)})
}

// @Summary Get Buyer Requirement
// @Tags Requirements
// @Produce json
// @Param requirement_id path string true "Requirement ID"
// @Success 200 {object} models.BuyerRequirement
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /requirements/{requirement_id} [get]
func (h *RequirementHandler) Show(c *gin.Context) {
	requirement, err := h.requirementService.Get(c.Request.Context(), c.Param("requirement_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requirement": requirement})
}

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// @Summary List Notifications
// @Description Get a paginated list of notifications for the current user
// @Tags Notifications
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param unread query bool false "Only unread notifications"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) Index(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, perPage := paging(c)

	notifications, err := h.notificationService.FindByUser(c.Request.Context(), userID, c.Query("unread") == "true")
	if err != nil {
		respondError(c, err)
		return
	}

	total := len(notifications)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	responses := make([]models.NotificationResponse, 0, end-start)
	for _, n := range notifications[start:end] {
		responses = append(responses, n.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{"notifications": responses, "pagination": gin.H{"total": total, "page": page, "per_page": perPage}})
}

// @Summary Mark Notification Read
// @Description Mark a notification as read
// @Tags Notifications
// @Accept json
// @Produce json
// @Param notification_id path string true "Notification ID"
// @Success 200 {object} models.NotificationResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id} [put]
func (h *NotificationHandler) Update(c *gin.Context) {
	notification, err := h.notificationService.MarkAsRead(c.Request.Context(), c.Param("notification_id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": notification.ToResponse()})
}

// @Summary Mark All Notifications Read
// @Description Mark all notifications as read for current user
// @Tags Notifications
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications/mark_all_as_read [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	marked, err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated list of system audit logs
// @Tags Audit
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	page, perPage := paging(c)
	offset := (page - 1) * perPage

	logs, total, err := h.auditService.List(c.Request.Context(), perPage, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": gin.H{"total": total, "page": page, "per_page": perPage}})
}

type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// @Summary Commissions Report
// @Description Download the commission split entries of deals accepted in a date range as CSV
// @Tags Reports
// @Produce text/csv
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {file} file "commissions.csv"
// @Security BearerAuth
// @Router /reports/commissions_csv [get]
func (h *ReportHandler) CommissionsCSV(c *gin.Context) {
	var from, to models.Date
	if s := c.Query("start_date"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		from = d
	}
	if s := c.Query("end_date"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		to = d
	}

	buf, err := h.reportService.GenerateCommissionsCSV(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=commissions.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// @Summary Overdue Instalments Report
// @Description Download every overdue instalment on an active deal as CSV
// @Tags Reports
// @Produce text/csv
// @Success 200 {file} file "overdue_instalments.csv"
// @Security BearerAuth
// @Router /reports/overdue_instalments_csv [get]
func (h *ReportHandler) OverdueInstalmentsCSV(c *gin.Context) {
	buf, err := h.reportService.GenerateOverdueInstalmentsCSV(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=overdue_instalments.csv")
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

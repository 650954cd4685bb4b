package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConsistency):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Compensation reports carry the
// individual failures so operators can see what was left behind.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var aggErr *services.AggregateError
	if errors.As(err, &aggErr) {
		body["consistent"] = aggErr.Consistent()
		if !aggErr.Consistent() {
			status = http.StatusInternalServerError
			failures := make([]string, 0, len(aggErr.Compensation))
			for _, f := range aggErr.Compensation {
				failures = append(failures, f.Error())
			}
			body["compensation_failures"] = failures
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.ErrorContext(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, body)
}

// bindBody binds the request body, nested under key or flat, and answers 400
// on malformed JSON. An empty body leaves obj untouched.
func bindBody(c *gin.Context, key string, obj interface{}) bool {
	err := BindNestedOrFlat(c, key, obj)
	if err == nil || errors.Is(err, ErrEmptyBody) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
	return false
}

func paging(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-brokerage/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Worker statistics and the outcome of the last overdue sweep
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}

// RunOverdueSweep triggers the overdue reminder sweep now
// @Summary Run overdue sweep
// @Description Runs the sweep and returns the job status. With async=true the sweep is queued on the worker pool.
// @Tags Jobs
// @Produce json
// @Param async query bool false "Queue the sweep instead of waiting for it"
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Success 202 {object} map[string]interface{}
// @Router /jobs/overdue_sweep [post]
func (h *JobHandler) RunOverdueSweep(c *gin.Context) {
	if c.Query("async") == "true" {
		h.jobService.QueueOverdueSweep()
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}
	if err := h.jobService.RunOverdueSweep(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
)

// Register mounts the API under v1. Everything but the health check needs a token.
func (h *Handlers) Register(v1 *gin.RouterGroup, jwtSecret string) {
	v1.GET("/health", h.Health.Index)

	protected := v1.Group("")
	protected.Use(middleware.Auth(jwtSecret))
	{
		// Admin-only routes
		admin := protected.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/audits", h.Audit.Index)
			admin.GET("/reports/commissions_csv", h.Report.CommissionsCSV)
			admin.GET("/reports/overdue_instalments_csv", h.Report.OverdueInstalmentsCSV)
			admin.GET("/jobs/status", h.Job.Status)
			admin.POST("/jobs/overdue_sweep", h.Job.RunOverdueSweep)
		}

		// Static routes first so they are not matched as an id
		protected.GET("/properties/relistable", h.Property.Relistable)
		protected.GET("/properties", h.Property.Index)
		protected.POST("/properties", h.Property.Create)
		protected.GET("/properties/:property_id", h.Property.Show)
		protected.POST("/properties/:property_id/relist", h.Property.Relist)
		protected.GET("/properties/:property_id/cycles", h.Cycle.IndexForProperty)
		protected.POST("/properties/:property_id/cycles", h.Cycle.Open)

		protected.GET("/requirements", h.Requirement.Index)
		protected.POST("/requirements", h.Requirement.Create)
		protected.GET("/requirements/:requirement_id", h.Requirement.Show)

		protected.GET("/cycles/:cycle_id", h.Cycle.Show)
		protected.POST("/cycles/:cycle_id/close", h.Cycle.Close)
		protected.GET("/cycles/:cycle_id/offers", h.Cycle.Offers)
		protected.POST("/cycles/:cycle_id/offers", h.Cycle.SubmitOffer)

		protected.GET("/offers/:offer_id", h.Offer.Show)
		protected.PUT("/offers/:offer_id", h.Offer.Adjust)
		protected.POST("/offers/:offer_id/accept", h.Offer.Accept)
		protected.POST("/offers/:offer_id/reject", h.Offer.Reject)
		protected.POST("/offers/:offer_id/withdraw", h.Offer.Withdraw)
		protected.POST("/offers/:offer_id/finalize", h.Offer.Finalize)

		protected.GET("/deals", h.Deal.Index)
		protected.GET("/deals/:deal_id", h.Deal.Show)
		protected.GET("/deals/:deal_id/history", h.Deal.History)
		protected.POST("/deals/:deal_id/complete", h.Deal.Complete)
		protected.POST("/deals/:deal_id/cancel", h.Deal.Cancel)
		protected.GET("/deals/:deal_id/commission", h.Deal.Commission)
		protected.PUT("/deals/:deal_id/commission", h.Deal.ComputeSplit)
		protected.GET("/deals/:deal_id/schedule", h.Schedule.ShowForDeal)
		protected.POST("/deals/:deal_id/schedule", h.Schedule.Generate)

		// CommissionService enforces the admin role on entry actions
		protected.GET("/commissions", h.Commission.Index)
		protected.POST("/commissions/bulk/:action", h.Commission.Bulk)
		protected.POST("/commissions/:entry_id/approve", h.Commission.Approve)
		protected.POST("/commissions/:entry_id/reject", h.Commission.Reject)
		protected.POST("/commissions/:entry_id/override", h.Commission.Override)
		protected.POST("/commissions/:entry_id/mark_paid", h.Commission.MarkPaid)

		protected.GET("/schedules/overdue", h.Schedule.Overdue)
		protected.GET("/schedules/:schedule_id", h.Schedule.Show)
		protected.POST("/schedules/:schedule_id/receipts", h.Schedule.UploadReceipt)
		protected.GET("/schedules/:schedule_id/receipts", h.Schedule.DownloadReceipt)
		protected.POST("/schedules/:schedule_id/instalments/:instalment_id/payments", h.Schedule.RecordPayment)

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", h.Notification.Index)
			notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
			notifications.PUT("/:notification_id", h.Notification.Update)
		}
	}
}

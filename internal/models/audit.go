package models

// Audit actions
const (
	AuditActionCreate   = "CREATE"
	AuditActionUpdate   = "UPDATE"
	AuditActionAccept   = "ACCEPT"
	AuditActionFinalize = "FINALIZE"
	AuditActionApprove  = "APPROVE"
	AuditActionReject   = "REJECT"
	AuditActionOverride = "OVERRIDE"
	AuditActionPay      = "PAY"
	AuditActionComplete = "COMPLETE"
	AuditActionCancel   = "CANCEL"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	Meta
	UserID    string `json:"user_id"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	Details   string `json:"details"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

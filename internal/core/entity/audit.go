package entity

// AuditAction names an audited ledger or cash-day mutation.
type AuditAction string

const (
	AuditCreate    AuditAction = "create"
	AuditUpdate    AuditAction = "update"
	AuditDelete    AuditAction = "delete"
	AuditPayment   AuditAction = "payment"
	AuditOpenDay   AuditAction = "open_day"
	AuditCloseDay  AuditAction = "close_day"
	AuditReopenDay AuditAction = "reopen_day"
	AuditAutoClose AuditAction = "auto_close"
	AuditUnlock    AuditAction = "unlock"
)

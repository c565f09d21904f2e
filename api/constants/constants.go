package constants

// Common error messages
const (
	ErrInvalidSession     = "invalid user_id or session"
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrInvalidJSONShort   = "Invalid JSON"
	ErrMissingUserID      = "Missing or invalid user_id in body"
	ErrPeriodeRequired    = "periode is required"
	ErrDB                 = "DB error"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrPleaseLogin        = "Please login to continue."
	ErrProductLocked      = "Product is locked by a costing run and cannot be changed"
	ErrGroupNotFound      = "Product group not found"
	ErrNoFileProvided     = "No import file provided"
	ErrUnsupportedFile    = "Unsupported file type; expected .xlsx, .xls or .csv"
	ErrEmptySheet         = "File must have a header row and at least one data row"
	ErrImportWritePhase   = "Import failed while writing; the previous data for this periode may be partially replaced. Please retry the upload"
	ErrValidationRejected = "File rejected; fix the listed rows and upload again"
)

// DB / SQL error templates
const (
	ErrTxStartFailed  = "failed to start transaction: "
	ErrTxCommitFailed = "failed to commit transaction: "
	ErrQueryFailed    = "query failed: "
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Date formats
const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)

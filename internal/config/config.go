package config

const (
	DefaultTimeZone = "Asia/Jakarta"

	// Upload pipeline
	ImportBatchSize      = 500
	MaxImportErrorsShown = 20
	MaxUploadBytes       = 32 << 20

	// Locked-product sync (see internal/jobs)
	DefaultLockSyncSchedule = "0 2 * * *"
)

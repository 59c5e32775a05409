// winrahi/config/config.go
package config

const (
	AppVersion = "0.9.2"

	// Form & Listing Limits
	MaxTitleLen       = 120
	MaxDescriptionLen = 4000
	MaxNameLen        = 80
	MaxContactLen     = 255
	MaxReportLen      = 1000

	// File Upload Limits
	MaxFileSize     = 10 * 1024 * 1024 // 10MB
	MaxWidth        = 8000
	MaxHeight       = 8000
	ThumbnailWidth  = 400
	ThumbnailHeight = 400

	// Auth
	MinPasswordLen = 8

	// Rate Limiting Defaults (item posting and reports)
	DefaultRateLimitEvery  = "20s"
	DefaultRateLimitBurst  = 5
	DefaultRateLimitPrune  = "1h"
	DefaultRateLimitExpire = "24h"
)

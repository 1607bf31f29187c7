package config

import "time"

const (
	// Draft lifecycle
	DraftTTL = 5 * time.Minute // anchored to created_at, never reset by edits

	// Assistant
	MaxToolRounds    = 5
	HistoryWindow    = 30 // messages handed to the model per completion
	ModelCallTimeout = 60 * time.Second
	DefaultModelName = "gemini-2.0-flash"

	// Geocoding
	GeocodeTimeout  = 6 * time.Second
	GeocodeCacheTTL = 24 * time.Hour

	// Catalog
	CatalogCacheTTL = 10 * time.Minute

	// Attachment size limits
	MaxImageBytes = 5 * 1024 * 1024
	MaxAudioBytes = 50 * 1024 * 1024
	MaxVideoBytes = 50 * 1024 * 1024
	MaxIDDocBytes = 50 * 1024 * 1024
	MaxSignBytes  = 50 * 1024 * 1024
)

// AttachmentLimits maps an attachment kind to its maximum size in bytes.
var AttachmentLimits = map[string]int64{
	"image":       MaxImageBytes,
	"audio":       MaxAudioBytes,
	"video":       MaxVideoBytes,
	"id_document": MaxIDDocBytes,
	"signature":   MaxSignBytes,
}

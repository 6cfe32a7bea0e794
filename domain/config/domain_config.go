package config

import "time"

// DomainConfig holds the configurable rules of the pipeline canvas
type DomainConfig struct {
	// Placement
	VerticalSpacing float64
	// TopFraction is the share of the visible height above the first node
	TopFraction float64

	// Default visible region used until a client reports its viewport
	CanvasWidth  float64
	CanvasHeight float64

	// Quiet periods
	ClassifyDebounce time.Duration
	PromptDebounce   time.Duration

	// Classification
	ClassificationCacheTTL time.Duration

	// Naming
	CopySuffixFormat string
	OutputTabSuffix  string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		VerticalSpacing: 150,
		TopFraction:     0.15,

		CanvasWidth:  1200,
		CanvasHeight: 800,

		ClassifyDebounce: time.Second,
		PromptDebounce:   time.Second,

		ClassificationCacheTTL: 10 * time.Minute,

		CopySuffixFormat: "%s (Copy %d)",
		OutputTabSuffix:  " Output",
	}
}

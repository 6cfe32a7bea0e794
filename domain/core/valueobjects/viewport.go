package valueobjects

import (
	pkgerrors "github.com/frenb/accelent/pkg/errors"
)

// Viewport describes the visible canvas region: its size in screen pixels
// and the pan/zoom transform from canvas space to screen space.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	PanX   float64 `json:"panX"`
	PanY   float64 `json:"panY"`
	Zoom   float64 `json:"zoom"`
}

// NewViewport creates a viewport with validation
func NewViewport(width, height, panX, panY, zoom float64) (Viewport, error) {
	if width <= 0 || height <= 0 {
		return Viewport{}, pkgerrors.NewValidationError("viewport width and height must be positive")
	}
	if zoom <= 0 || !isValidCoordinate(zoom) {
		return Viewport{}, pkgerrors.NewValidationError("viewport zoom must be a positive number")
	}
	if !isValidCoordinate(panX) || !isValidCoordinate(panY) {
		return Viewport{}, pkgerrors.NewValidationError("viewport pan must be finite")
	}
	return Viewport{Width: width, Height: height, PanX: panX, PanY: panY, Zoom: zoom}, nil
}

// ScreenToCanvas converts a screen coordinate into canvas space.
func (v Viewport) ScreenToCanvas(sx, sy float64) (Position, error) {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return NewPosition((sx-v.PanX)/zoom, (sy-v.PanY)/zoom)
}

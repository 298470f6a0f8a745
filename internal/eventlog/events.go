// Package eventlog records behavioral events (document views, page-load
// performance samples) as append-only streams. Appends are best effort: a
// malformed event or a failed write is logged and dropped so tracking can
// never destabilize the caller.
package eventlog

import (
	"time"

	"github.com/geoaziz/contentcore/internal/content"
)

// Device classifies the viewer's device.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
	DeviceUnknown Device = "unknown"
)

// ViewEvent is one observed interaction with a document.
type ViewEvent struct {
	Slug        string       `json:"slug"`
	ContentType content.Type `json:"type"`
	Timestamp   time.Time    `json:"timestamp"`
	// ReadingTime is the estimated reading time shown to the viewer, in
	// seconds.
	ReadingTime int `json:"readingTime,omitempty"`
	// ScrollDepth is how far the viewer scrolled, 0-100.
	ScrollDepth int `json:"scrollDepth,omitempty"`
	// TimeOnPage is the dwell time in seconds.
	TimeOnPage int    `json:"timeOnPage,omitempty"`
	Source     string `json:"source,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	Device     Device `json:"device,omitempty"`
}

// PerformanceSample is one page-load performance measurement. It is not tied
// to a document.
type PerformanceSample struct {
	URL       string    `json:"url"`
	LoadTime  float64   `json:"loadTime"`
	FCP       float64   `json:"fcp,omitempty"`
	LCP       float64   `json:"lcp,omitempty"`
	CLS       float64   `json:"cls,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Coordinates is a precise location reported by the client.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ClientReport is what the client knows about its own environment at boot.
// Every field is optional.
type ClientReport struct {
	UserAgent        string       `json:"userAgent"`
	Language         string       `json:"language"`
	Platform         string       `json:"platform"`
	ScreenResolution string       `json:"screenResolution"`
	ViewportSize     string       `json:"viewportSize"`
	ConnectionType   string       `json:"connectionType"`
	Timezone         string       `json:"timezone"`
	Cores            *int         `json:"cores"`
	Memory           *float64     `json:"memory"`
	BatteryLevel     *float64     `json:"batteryLevel"` // 0..1
	Location         *Coordinates `json:"location"`

	// LocationPending means the client asked for a precise fix and will
	// report it separately once the user answers the permission prompt.
	LocationPending bool `json:"locationPending"`
}

// LocationProvider delivers a precise location, or reports false when the
// user denied it or ctx ended first. ExpectLocation is called before Locate,
// as soon as a snapshot knows it will wait.
type LocationProvider interface {
	ExpectLocation()
	Locate(ctx context.Context) (*Coordinates, bool)
}

// Locate waits for ReportLocation. Once it returns, later reports are
// refused.
func (c *ClientSession) Locate(ctx context.Context) (*Coordinates, bool) {
	select {
	case coords := <-c.location:
		c.mu.Lock()
		c.awaiting = false
		c.mu.Unlock()
		return &coords, true
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.awaiting = false

	// a fix accepted while ctx was ending is still used
	select {
	case coords := <-c.location:
		return &coords, true
	default:
		return nil, false
	}
}

// GeoLocator resolves an IP to a country.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) GeoResult
}

// VisitorLogAppender persists a finished snapshot.
type VisitorLogAppender interface {
	AppendVisitorLog(ctx context.Context, entry models.VisitorLog)
}

// Snapshot outcomes passed to the capture observer.
const (
	CaptureComplete = "complete"
	CapturePartial  = "partial"
)

// Collector captures one visitor snapshot per app load. Capture is
// fire-and-forget: steps that fail fall back to a neutral value and the
// record is always written.
type Collector struct {
	geo             GeoLocator
	logs            VisitorLogAppender
	locationTimeout time.Duration
	onCapture       func(outcome string)
	now             func() time.Time

	wg sync.WaitGroup
}

// NewCollector creates a collector. A zero locationTimeout means 5 seconds.
func NewCollector(geo GeoLocator, logs VisitorLogAppender, locationTimeout time.Duration) *Collector {
	if locationTimeout <= 0 {
		locationTimeout = 5 * time.Second
	}
	return &Collector{
		geo:             geo,
		logs:            logs,
		locationTimeout: locationTimeout,
		onCapture:       func(string) {},
		now:             time.Now,
	}
}

// OnCapture registers an observer called with the outcome of every snapshot.
func (c *Collector) OnCapture(fn func(outcome string)) {
	c.onCapture = fn
}

// Capture starts a snapshot in the background. The request context is
// detached, so the capture survives the request that triggered it.
func (c *Collector) Capture(ctx context.Context, ip string, report ClientReport, location LocationProvider) {
	ctx = context.WithoutCancel(ctx)
	if awaitsFix(report, location) {
		location.ExpectLocation()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		entry := c.Collect(ctx, ip, report, location)
		c.logs.AppendVisitorLog(ctx, entry)
	}()
}

// Wait blocks until every started capture has been written.
func (c *Collector) Wait() {
	c.wg.Wait()
}

// Collect runs the snapshot steps concurrently and joins them into a record.
func (c *Collector) Collect(ctx context.Context, ip string, report ClientReport, location LocationProvider) models.VisitorLog {
	entry := models.VisitorLog{
		Timestamp: c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}

	var (
		geo    GeoResult
		coords *Coordinates
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		geo = c.geo.Lookup(gctx, ip)
		return nil
	})

	g.Go(func() error {
		coords = c.locate(gctx, report, location)
		return nil
	})

	// Device metadata and battery come from the report and cannot block.
	fillDevice(&entry, report)
	entry.BatteryLevel = batteryPercent(report.BatteryLevel)

	_ = g.Wait()

	entry.IP = geo.IP
	entry.Country = geo.Country
	if coords != nil {
		entry.Latitude = &coords.Latitude
		entry.Longitude = &coords.Longitude
	}

	outcome := CaptureComplete
	if geo.Country == models.Unknown {
		outcome = CapturePartial
	}
	c.onCapture(outcome)

	log.Debug().
		Str("ip", entry.IP).
		Str("country", entry.Country).
		Str("device", entry.DeviceType).
		Bool("located", coords != nil).
		Msg("Visitor snapshot captured")

	return entry
}

func (c *Collector) locate(ctx context.Context, report ClientReport, location LocationProvider) *Coordinates {
	if report.Location != nil {
		coords := *report.Location
		return &coords
	}
	if !awaitsFix(report, location) {
		return nil
	}
	location.ExpectLocation()

	ctx, cancel := context.WithTimeout(ctx, c.locationTimeout)
	defer cancel()

	coords, ok := location.Locate(ctx)
	if !ok {
		return nil
	}
	return coords
}

// awaitsFix reports whether the snapshot waits for a late precise fix.
func awaitsFix(report ClientReport, location LocationProvider) bool {
	return report.Location == nil && report.LocationPending && location != nil
}

func fillDevice(entry *models.VisitorLog, report ClientReport) {
	entry.UserAgent = report.UserAgent
	entry.Language = report.Language
	entry.Platform = report.Platform
	entry.ScreenResolution = report.ScreenResolution
	entry.ViewportSize = report.ViewportSize
	entry.ConnectionType = report.ConnectionType
	entry.Timezone = report.Timezone
	entry.Cores = report.Cores
	entry.Memory = report.Memory
	entry.DeviceType = ExtractDeviceType(report.UserAgent)
}

// batteryPercent renders a 0..1 charge level as "NN%".
func batteryPercent(level *float64) string {
	if level == nil || *level < 0 || *level > 1 {
		return ""
	}
	return fmt.Sprintf("%d%%", int(math.Round(*level*100)))
}

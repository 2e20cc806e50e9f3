package models

// MaxVisitorLogs caps the visitor log. Older entries fall off the end.
const MaxVisitorLogs = 100

// Device types reported in VisitorLog.DeviceType.
const (
	DeviceMobile   = "Mobile"
	DeviceTablet   = "Tablet"
	DeviceComputer = "Computer"
)

// Unknown is recorded when the geo-IP lookup fails.
const Unknown = "Unknown"

// VisitorLog is one environment snapshot, captured once per app load.
// Optional fields are pointers so that "not reported" stays distinguishable
// from a zero reading.
type VisitorLog struct {
	IP               string   `json:"ip"`
	Country          string   `json:"country,omitempty"`
	UserAgent        string   `json:"userAgent"`
	Language         string   `json:"language"`
	Platform         string   `json:"platform"`
	ScreenResolution string   `json:"screenResolution"`
	ViewportSize     string   `json:"viewportSize"`
	ConnectionType   string   `json:"connectionType,omitempty"`
	Timestamp        string   `json:"timestamp"`
	Timezone         string   `json:"timezone"`
	BatteryLevel     string   `json:"batteryLevel,omitempty"`
	Cores            *int     `json:"cores,omitempty"`
	Memory           *float64 `json:"memory,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	DeviceType       string   `json:"deviceType,omitempty"`
}

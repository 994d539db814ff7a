package domain

// Default device attributes used when the registry record omits them.
const (
	DefaultPricePerKWh    = 12.50
	DefaultDeviceAddress  = "Unknown Location"
	DefaultDeviceNameTmpl = "Device %s"
)

// Device is the canonical meter record after normalization. The registry
// itself is free-form; see store.NormalizeDevice.
type Device struct {
	ID        string  `json:"id"`
	Contact   string  `json:"contact"`
	KWh       float64 `json:"kwh"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Timestamp int64   `json:"timestamp"`
}

// ResolutionState is the outcome of matching a profile phone to a device.
type ResolutionState string

const (
	ResolutionConnected       ResolutionState = "connected"
	ResolutionPhoneMissing    ResolutionState = "phone-missing"
	ResolutionNoDevice        ResolutionState = "no-device"
	ResolutionNoData          ResolutionState = "no-data"
	ResolutionConnectionError ResolutionState = "connection-error"
)

// Resolution is the result of device resolution for one registry snapshot.
type Resolution struct {
	State     ResolutionState `json:"state"`
	Phone     string          `json:"phone,omitempty"`
	Device    *Device         `json:"device,omitempty"`
	Ambiguous []string        `json:"ambiguous,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// User-facing resolution messages.
const (
	MsgPhoneMissing   = "Phone number missing in your profile. Please update your profile with your device phone number."
	MsgNoDeviceData   = "No device data available in the database."
	MsgNoDeviceMatchF = "No device found matching your phone number: %s. Please verify your profile phone number matches your device registration."
	MsgConnectFailedF = "Failed to connect to device database: %s"
	MsgProfileFailedF = "Failed to load user profile: %s"
)

package provider

import "time"

// APIError is the provider's error marker inside an event detail response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BoolSignal is a product section whose payload is a single boolean result
type BoolSignal struct {
	Data struct {
		Result bool `json:"result"`
	} `json:"data"`
}

// ScoreSignal is a product section whose payload is a numeric result
type ScoreSignal struct {
	Data struct {
		Result int `json:"result"`
	} `json:"data"`
}

// ActivitySignal reports device request activity
type ActivitySignal struct {
	Data struct {
		Result        bool `json:"result"`
		DailyRequests int  `json:"dailyRequests"`
	} `json:"data"`
}

// ResetSignal reports the device's last factory reset
type ResetSignal struct {
	Data struct {
		Time time.Time `json:"time"`
	} `json:"data"`
}

// Products holds the product sections of an event detail. Every section is
// optional; availability depends on the provider plan and the platform the
// visit came from.
type Products struct {
	Tampering        *BoolSignal     `json:"tampering,omitempty"`
	VirtualMachine   *BoolSignal     `json:"virtualMachine,omitempty"`
	HighActivity     *ActivitySignal `json:"highActivity,omitempty"`
	LocationSpoofing *BoolSignal     `json:"locationSpoofing,omitempty"`
	RemoteControl    *BoolSignal     `json:"remoteControl,omitempty"`
	SuspectScore     *ScoreSignal    `json:"suspectScore,omitempty"`
	DeveloperTools   *BoolSignal     `json:"developerTools,omitempty"`
	IPBlocklist      *BoolSignal     `json:"ipBlocklist,omitempty"`
	Jailbroken       *BoolSignal     `json:"jailbroken,omitempty"`
	Frida            *BoolSignal     `json:"frida,omitempty"`
	ClonedApp        *BoolSignal     `json:"clonedApp,omitempty"`
	FactoryReset     *ResetSignal    `json:"factoryReset,omitempty"`
}

// EventDetail is the provider's server-side view of one identification
// event, fetched by request id.
type EventDetail struct {
	Products Products  `json:"products"`
	Error    *APIError `json:"error,omitempty"`
}

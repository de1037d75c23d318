package visit

// similarityThreshold is the minimum score at which a candidate profile is
// accepted as the same device/browser.
const similarityThreshold = 70

// SignalSnapshot is the comparable subset of one visit's environment
// signals. Zero values mean the signal was not reported.
type SignalSnapshot struct {
	UserAgent           string
	Platform            string
	Language            string
	Timezone            string
	ScreenWidth         int
	ScreenHeight        int
	HardwareConcurrency int
	DeviceMemory        float64
	IP                  string
}

// Snapshot builds the comparable snapshot for an inbound event
func (e *VisitEvent) Snapshot() SignalSnapshot {
	snap := SignalSnapshot{IP: e.IP()}
	if sig := e.ClientSignals; sig != nil {
		snap.UserAgent = sig.UserAgent
		snap.Platform = sig.Platform
		snap.Language = sig.Language
		snap.Timezone = sig.Timezone
		snap.HardwareConcurrency = sig.HardwareConcurrency
		snap.DeviceMemory = sig.DeviceMemory
		if sig.Screen != nil {
			snap.ScreenWidth = sig.Screen.Width
			snap.ScreenHeight = sig.Screen.Height
		}
	}
	return snap
}

// Snapshot builds the comparable snapshot from a profile's stored signals
func (p *VisitorProfile) Snapshot() SignalSnapshot {
	var snap SignalSnapshot
	if p.LastIP != nil {
		snap.IP = *p.LastIP
	}
	if sig := p.Signals; sig != nil {
		snap.UserAgent = sig.UserAgent
		snap.Platform = sig.Platform
		snap.Language = sig.Language
		snap.Timezone = sig.Timezone
		snap.HardwareConcurrency = sig.HardwareConcurrency
		snap.DeviceMemory = sig.DeviceMemory
		if sig.Screen != nil {
			snap.ScreenWidth = sig.Screen.Width
			snap.ScreenHeight = sig.Screen.Height
		}
	}
	return snap
}

// SimilarityScore rates how likely two snapshots come from the same
// device/browser, 0-100. Each criterion contributes only when both sides
// report a value; the function is symmetric in its arguments. This is a
// heuristic, not a cryptographic identity.
func SimilarityScore(a, b SignalSnapshot) int {
	score := 0

	if a.UserAgent != "" && b.UserAgent != "" && a.UserAgent == b.UserAgent {
		score += 40
	}
	if a.Platform != "" && b.Platform != "" && a.Platform == b.Platform {
		score += 10
	}
	if a.Language != "" && b.Language != "" && a.Language == b.Language {
		score += 8
	}
	if a.Timezone != "" && b.Timezone != "" && a.Timezone == b.Timezone {
		score += 12
	}
	if a.ScreenWidth > 0 && b.ScreenWidth > 0 && a.ScreenWidth == b.ScreenWidth {
		score += 8
	}
	if a.ScreenHeight > 0 && b.ScreenHeight > 0 && a.ScreenHeight == b.ScreenHeight {
		score += 8
	}
	if a.HardwareConcurrency > 0 && b.HardwareConcurrency > 0 && a.HardwareConcurrency == b.HardwareConcurrency {
		score += 7
	}
	if a.DeviceMemory > 0 && b.DeviceMemory > 0 && a.DeviceMemory == b.DeviceMemory {
		score += 7
	}
	if a.IP != "" && b.IP != "" && a.IP == b.IP {
		score += 15
	}

	if score > 100 {
		score = 100
	}
	return score
}

package visit

import (
	"github.com/richxcame/visitorguard/internal/provider"
)

// NormalizeBool coerces a raw fingerprint flag into a boolean. Providers
// report flags either as plain booleans or as objects carrying a nested
// result/value; anything else (absent, null, malformed) fails safe to
// "flag not present".
func NormalizeBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case map[string]interface{}:
		if result, ok := v["result"].(bool); ok {
			return result
		}
		if result, ok := v["value"].(bool); ok {
			return result
		}
	}
	return false
}

// BaseFlags are the five client-reported risk flags after normalization
type BaseFlags struct {
	Bot       bool
	Tor       bool
	VPN       bool
	Proxy     bool
	Incognito bool
}

// Any reports whether at least one flag is set
func (f BaseFlags) Any() bool {
	return f.Bot || f.Tor || f.VPN || f.Proxy || f.Incognito
}

// NormalizeFlags extracts the base risk flags from a fingerprint result
func NormalizeFlags(fp *FingerprintResult) BaseFlags {
	if fp == nil {
		return BaseFlags{}
	}
	return BaseFlags{
		Bot:       NormalizeBool(fp.Bot),
		Tor:       NormalizeBool(fp.Tor),
		VPN:       NormalizeBool(fp.VPN),
		Proxy:     NormalizeBool(fp.Proxy),
		Incognito: NormalizeBool(fp.Incognito),
	}
}

// ExtractSmartSignals flattens a provider event detail into the uniform
// SmartSignals shape. An absent event or one carrying an error marker
// yields an empty bundle, never an error.
func ExtractSmartSignals(event *provider.EventDetail) SmartSignals {
	if event == nil || event.Error != nil {
		return SmartSignals{}
	}

	p := event.Products
	var signals SmartSignals

	if p.Tampering != nil {
		signals.Tampering = p.Tampering.Data.Result
	}
	if p.VirtualMachine != nil {
		signals.VirtualMachine = p.VirtualMachine.Data.Result
	}
	if p.HighActivity != nil {
		signals.HighActivity = p.HighActivity.Data.Result
		signals.DailyRequests = p.HighActivity.Data.DailyRequests
	}
	if p.LocationSpoofing != nil {
		signals.LocationSpoofing = p.LocationSpoofing.Data.Result
	}
	if p.RemoteControl != nil {
		signals.RemoteControl = p.RemoteControl.Data.Result
	}
	if p.SuspectScore != nil {
		signals.SuspectScore = p.SuspectScore.Data.Result
	}
	if p.DeveloperTools != nil {
		signals.DeveloperTools = p.DeveloperTools.Data.Result
	}
	if p.IPBlocklist != nil {
		signals.IPBlocklist = p.IPBlocklist.Data.Result
	}
	if p.Jailbroken != nil {
		signals.Jailbroken = p.Jailbroken.Data.Result
	}
	if p.Frida != nil {
		signals.Frida = p.Frida.Data.Result
	}
	if p.ClonedApp != nil {
		signals.ClonedApp = p.ClonedApp.Data.Result
	}
	if p.FactoryReset != nil && !p.FactoryReset.Data.Time.IsZero() {
		t := p.FactoryReset.Data.Time
		signals.FactoryResetAt = &t
	}

	return signals
}

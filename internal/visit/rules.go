package visit

import "time"

// ScoreInput is everything the scoring engine looks at for one visit
type ScoreInput struct {
	Flags             BaseFlags
	Confidence        *float64
	Smart             SmartSignals
	Match             MatchResult
	Existing          *VisitorProfile
	RecentSameIPCount int
	CurrentIP         string
	CurrentUserAgent  string
	Now               time.Time
}

// riskRule is one additive scoring rule. Rules fire at most once per
// evaluation and are applied in table order.
type riskRule struct {
	applies func(ScoreInput) bool
	points  int
	tag     func(ScoreInput) string
}

func staticTag(tag string) func(ScoreInput) string {
	return func(ScoreInput) string { return tag }
}

const (
	highActivityDailyRequests = 100
	suspectScoreThreshold     = 50
	factoryResetWindow        = 7 * 24 * time.Hour
)

// signalRules scores the visit's own signals: client flags, smart signals
// and identification confidence.
var signalRules = []riskRule{
	{func(in ScoreInput) bool { return in.Flags.Bot }, 55, staticTag("bot_detected")},
	{func(in ScoreInput) bool { return in.Flags.Tor }, 35, staticTag("tor_detected")},
	{func(in ScoreInput) bool { return in.Flags.VPN }, 20, staticTag("vpn_detected")},
	{func(in ScoreInput) bool { return in.Flags.Proxy }, 15, staticTag("proxy_detected")},
	{func(in ScoreInput) bool { return in.Flags.Incognito }, 10, staticTag("incognito_mode")},
	{func(in ScoreInput) bool { return in.Smart.Tampering }, 25, staticTag("tampering_detected")},
	{func(in ScoreInput) bool { return in.Smart.VirtualMachine }, 20, staticTag("virtual_machine_detected")},
	{func(in ScoreInput) bool {
		return in.Smart.HighActivity || in.Smart.DailyRequests > highActivityDailyRequests
	}, 20, staticTag("high_activity_device")},
	{func(in ScoreInput) bool { return in.Smart.LocationSpoofing }, 20, staticTag("location_spoofing_detected")},
	{func(in ScoreInput) bool { return in.Smart.RemoteControl }, 25, staticTag("remote_control_detected")},
	{func(in ScoreInput) bool { return in.Smart.SuspectScore >= suspectScoreThreshold }, 20, staticTag("high_suspect_score")},
	{func(in ScoreInput) bool { return in.Smart.DeveloperTools }, 5, staticTag("developer_tools_open")},
	{func(in ScoreInput) bool { return in.Smart.IPBlocklist }, 25, staticTag("ip_blocklist")},
	{func(in ScoreInput) bool { return in.Smart.Jailbroken }, 20, staticTag("jailbroken_device")},
	{func(in ScoreInput) bool { return in.Smart.Frida }, 30, staticTag("frida_detected")},
	{func(in ScoreInput) bool { return in.Smart.ClonedApp }, 25, staticTag("cloned_app_detected")},
	{func(in ScoreInput) bool {
		if in.Smart.FactoryResetAt == nil {
			return false
		}
		age := in.Now.Sub(*in.Smart.FactoryResetAt)
		return age >= 0 && age <= factoryResetWindow
	}, 15, staticTag("recent_factory_reset")},
	// The two confidence rules stack below 0.75
	{func(in ScoreInput) bool { return in.Confidence != nil && *in.Confidence < 0.9 }, 15, staticTag("low_confidence")},
	{func(in ScoreInput) bool { return in.Confidence != nil && *in.Confidence < 0.75 }, 15, staticTag("very_low_confidence")},
	{func(in ScoreInput) bool { return in.Existing != nil }, 35, staticTag("previously_seen_profile")},
	{func(in ScoreInput) bool { return in.Match.Matched() && !in.Match.Exact() }, 18,
		func(in ScoreInput) string { return "matched_by_" + in.Match.Tag() }},
}

// historyRules scores drift against the resolved profile's stored state.
// They run after the velocity bucket so reason ordering mirrors evaluation
// order.
var historyRules = []riskRule{
	{func(in ScoreInput) bool {
		return in.Existing != nil && in.Existing.LastIP != nil && *in.Existing.LastIP != "" &&
			in.CurrentIP != "" && *in.Existing.LastIP != in.CurrentIP
	}, 10, staticTag("ip_changed_from_last_visit")},
	{func(in ScoreInput) bool {
		return in.Existing != nil && in.Existing.LastUserAgent != nil && *in.Existing.LastUserAgent != "" &&
			in.CurrentUserAgent != "" && *in.Existing.LastUserAgent != in.CurrentUserAgent
	}, 12, staticTag("user_agent_changed_from_last_visit")},
	{func(in ScoreInput) bool {
		return in.Existing != nil && (in.Existing.RiskLabel == RiskLabelHigh || in.Existing.RiskScore >= 60)
	}, 20, staticTag("prior_high_risk_history")},
}

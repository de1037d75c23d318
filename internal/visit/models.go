package visit

import (
	"fmt"
	"time"
)

// RiskLabel classifies a scored visit
type RiskLabel string

const (
	RiskLabelLow    RiskLabel = "low"
	RiskLabelMedium RiskLabel = "medium"
	RiskLabelHigh   RiskLabel = "high"
)

// Decision is the action recommended for a scored visit
type Decision string

const (
	DecisionAllow        Decision = "allow"
	DecisionReview       Decision = "review"
	DecisionDenyReferral Decision = "deny_referral"
)

// MatchStrategy identifies how an existing profile was resolved
type MatchStrategy string

const (
	MatchByVisitorID  MatchStrategy = "visitor_id"
	MatchByLinkedID   MatchStrategy = "linked_id"
	MatchBySimilarity MatchStrategy = "signal_similarity"
)

// MatchResult is the provenance of an identity resolution. The zero value
// means no existing profile was found.
type MatchResult struct {
	Strategy   MatchStrategy `json:"strategy,omitempty"`
	Similarity int           `json:"similarity,omitempty"` // set only for MatchBySimilarity
}

// Matched reports whether an existing profile was found
func (m MatchResult) Matched() bool {
	return m.Strategy != ""
}

// Exact reports whether the match came from the authoritative visitor id
func (m MatchResult) Exact() bool {
	return m.Strategy == MatchByVisitorID
}

// Tag formats the display tag for the match provenance
func (m MatchResult) Tag() string {
	if m.Strategy == MatchBySimilarity {
		return fmt.Sprintf("signal_similarity_%d", m.Similarity)
	}
	return string(m.Strategy)
}

// Confidence is the provider's identification confidence
type Confidence struct {
	Score float64 `json:"score"`
}

// FingerprintResult is the client-side fingerprinting result carried by a
// visit. The raw flag fields arrive either as plain booleans or as objects
// with a nested result/value, so they stay untyped until normalized.
type FingerprintResult struct {
	VisitorID  string      `json:"visitorId" binding:"required"`
	LinkedID   string      `json:"linkedId,omitempty"`
	RequestID  string      `json:"requestId,omitempty"`
	Confidence *Confidence `json:"confidence,omitempty"`
	Incognito  interface{} `json:"incognito,omitempty"`
	VPN        interface{} `json:"vpn,omitempty"`
	Proxy      interface{} `json:"proxy,omitempty"`
	Tor        interface{} `json:"tor,omitempty"`
	Bot        interface{} `json:"bot,omitempty"`
	IP         string      `json:"ip,omitempty"`
}

// ConfidenceScore returns the confidence score, or nil if not reported
func (f *FingerprintResult) ConfidenceScore() *float64 {
	if f == nil || f.Confidence == nil {
		return nil
	}
	score := f.Confidence.Score
	return &score
}

// Screen holds reported display dimensions
type Screen struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// ClientSignals are raw browser-environment signals gathered client-side
type ClientSignals struct {
	UserAgent           string  `json:"userAgent,omitempty"`
	Platform            string  `json:"platform,omitempty"`
	Language            string  `json:"language,omitempty"`
	Timezone            string  `json:"timezone,omitempty"`
	Screen              *Screen `json:"screen,omitempty"`
	HardwareConcurrency int     `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        float64 `json:"deviceMemory,omitempty"`
	Timestamp           string  `json:"timestamp,omitempty"`
}

// SmartSignals is the uniform shape of the provider's richer server-side
// fraud indicators. The zero value means no signal was available; scoring
// must tolerate every field being absent.
type SmartSignals struct {
	Tampering        bool       `json:"tampering,omitempty"`
	VirtualMachine   bool       `json:"virtual_machine,omitempty"`
	HighActivity     bool       `json:"high_activity,omitempty"`
	DailyRequests    int        `json:"daily_requests,omitempty"`
	LocationSpoofing bool       `json:"location_spoofing,omitempty"`
	RemoteControl    bool       `json:"remote_control,omitempty"`
	SuspectScore     int        `json:"suspect_score,omitempty"`
	DeveloperTools   bool       `json:"developer_tools,omitempty"`
	IPBlocklist      bool       `json:"ip_blocklist,omitempty"`
	Jailbroken       bool       `json:"jailbroken,omitempty"`
	Frida            bool       `json:"frida,omitempty"`
	ClonedApp        bool       `json:"cloned_app,omitempty"`
	FactoryResetAt   *time.Time `json:"factory_reset_at,omitempty"`
}

// VisitEvent is one inbound visit to assess
type VisitEvent struct {
	FingerprintResult *FingerprintResult `json:"fpResult" binding:"required"`
	ClientSignals     *ClientSignals     `json:"clientSignals,omitempty"`
	SmartSignals      *SmartSignals      `json:"smartSignals,omitempty"`
}

// IP returns the network address reported with the event, if any
func (e *VisitEvent) IP() string {
	if e.FingerprintResult == nil {
		return ""
	}
	return e.FingerprintResult.IP
}

// UserAgent returns the client-reported user agent, if any
func (e *VisitEvent) UserAgent() string {
	if e.ClientSignals == nil {
		return ""
	}
	return e.ClientSignals.UserAgent
}

// VisitorProfile is the durable record of one resolved identity.
// first_seen_at is written once on creation and never overwritten;
// visit_count only increases; last_seen_at never goes backwards.
type VisitorProfile struct {
	VisitorID       string             `json:"visitor_id"`
	LinkedID        *string            `json:"linked_id,omitempty"`
	FirstSeenAt     time.Time          `json:"first_seen_at"`
	LastSeenAt      time.Time          `json:"last_seen_at"`
	VisitCount      int                `json:"visit_count"`
	LastIP          *string            `json:"last_ip,omitempty"`
	LastUserAgent   *string            `json:"last_user_agent,omitempty"`
	RiskLabel       RiskLabel          `json:"risk_label"`
	RiskScore       int                `json:"risk_score"`
	ConfidenceScore *float64           `json:"confidence_score,omitempty"`
	LastRequestID   *string            `json:"last_request_id,omitempty"`
	Fingerprint     *FingerprintResult `json:"raw_fp_result,omitempty"`
	Signals         *ClientSignals     `json:"raw_client_signals,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// RiskAssessment is the scored outcome for one visit
type RiskAssessment struct {
	RiskScore          int       `json:"risk_score"`
	LegitimacyScore    int       `json:"legitimacy_score"`
	RiskLabel          RiskLabel `json:"risk_label"`
	Reasons            []string  `json:"reasons"`
	IsFraudSuspected   bool      `json:"is_fraud_suspected"`
	Decision           Decision  `json:"decision"`
	IsReferralEligible bool      `json:"is_referral_eligible"`
}

// VisitResult is the full ingestion response: the assessment plus the
// identity metadata the caller needs to act on it.
type VisitResult struct {
	OK                bool   `json:"ok"`
	DetectedVisitorID string `json:"detected_visitor_id"`
	ResolvedVisitorID string `json:"resolved_visitor_id"`
	IsNewVisitor      bool   `json:"is_new_visitor"`
	MatchedBy         string `json:"matched_by,omitempty"`
	VisitCount        int    `json:"visit_count"`
	RiskAssessment
}

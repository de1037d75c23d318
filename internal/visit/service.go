package visit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/richxcame/visitorguard/pkg/common"
	"github.com/richxcame/visitorguard/pkg/logger"
)

// velocityWindow is the trailing window for same-address visit counting
const velocityWindow = 24 * time.Hour

// Service orchestrates visit ingestion: identity resolution, signal
// normalization, velocity, scoring and the profile mutation. It holds no
// cross-request state; concurrent visits from the same identity can race on
// the read-then-write sequence, which is an accepted weak-consistency
// tradeoff.
type Service struct {
	repo     ProfileRepository
	resolver *Resolver
	provider EventDetailFetcher
	now      func() time.Time
}

// NewService creates a new visit service. The provider fetcher may be nil,
// in which case scoring runs on client-reported signals alone.
func NewService(repo ProfileRepository, provider EventDetailFetcher) *Service {
	return &Service{
		repo:     repo,
		resolver: NewResolver(repo),
		provider: provider,
		now:      time.Now,
	}
}

// HandleVisit assesses one visit end to end and persists the profile
// mutation. Validation and store errors abort the whole invocation; a
// failed provider lookup only reduces the available signal set.
func (s *Service) HandleVisit(ctx context.Context, event *VisitEvent) (*VisitResult, error) {
	if event == nil || event.FingerprintResult == nil || event.FingerprintResult.VisitorID == "" {
		return nil, common.NewInvalidPayloadError("fpResult.visitorId is required")
	}
	fp := event.FingerprintResult

	profile, match, err := s.resolver.Resolve(ctx, event)
	if err != nil {
		return nil, err
	}

	smart := s.smartSignals(ctx, event)
	now := s.now()

	recentSameIP := 0
	if ip := event.IP(); ip != "" {
		recentSameIP, err = s.repo.CountRecentByIP(ctx, ip, now.Add(-velocityWindow))
		if err != nil {
			return nil, common.NewStoreUnavailableError("velocity count failed", err)
		}
	}

	assessment := Score(ScoreInput{
		Flags:             NormalizeFlags(fp),
		Confidence:        fp.ConfidenceScore(),
		Smart:             smart,
		Match:             match,
		Existing:          profile,
		RecentSameIPCount: recentSameIP,
		CurrentIP:         event.IP(),
		CurrentUserAgent:  event.UserAgent(),
		Now:               now,
	})

	updated := applyVisit(profile, event, assessment, now)
	if err := s.repo.Upsert(ctx, updated); err != nil {
		return nil, common.NewStoreUnavailableError("profile upsert failed", err)
	}

	recordAssessment(assessment)

	result := &VisitResult{
		OK:                true,
		DetectedVisitorID: fp.VisitorID,
		ResolvedVisitorID: updated.VisitorID,
		IsNewVisitor:      profile == nil,
		VisitCount:        updated.VisitCount,
		RiskAssessment:    assessment,
	}
	if match.Matched() {
		result.MatchedBy = match.Tag()
	}
	return result, nil
}

// GetProfile returns a stored profile, or (nil, nil) when unknown
func (s *Service) GetProfile(ctx context.Context, visitorID string) (*VisitorProfile, error) {
	if visitorID == "" {
		return nil, common.NewInvalidPayloadError("visitor id is required")
	}

	profile, err := s.repo.GetByVisitorID(ctx, visitorID)
	if err != nil {
		return nil, common.NewStoreUnavailableError("visitor lookup failed", err)
	}
	return profile, nil
}

// smartSignals resolves the augmented signal bundle for an event. An inline
// bundle wins; otherwise the provider is queried by request id, and any
// provider failure degrades to an empty bundle.
func (s *Service) smartSignals(ctx context.Context, event *VisitEvent) SmartSignals {
	if event.SmartSignals != nil {
		return *event.SmartSignals
	}

	requestID := event.FingerprintResult.RequestID
	if s.provider == nil || requestID == "" {
		return SmartSignals{}
	}

	detail, err := s.provider.EventDetail(ctx, requestID)
	if err != nil {
		providerLookupsTotal.WithLabelValues("degraded").Inc()
		logger.WithContext(ctx).Warn("provider event detail lookup failed, proceeding without smart signals",
			zap.String("request_id", requestID),
			zap.Error(common.NewProviderDegradedError("event detail lookup failed", err)),
		)
		return SmartSignals{}
	}

	providerLookupsTotal.WithLabelValues("ok").Inc()
	return ExtractSmartSignals(detail)
}

// applyVisit derives the profile mutation for an assessed visit. The count
// only goes up, first_seen_at is set once on creation, and the last-* fields
// are overwritten with the visit's values even when absent.
func applyVisit(existing *VisitorProfile, event *VisitEvent, assessment RiskAssessment, now time.Time) *VisitorProfile {
	fp := event.FingerprintResult

	updated := &VisitorProfile{}
	if existing != nil {
		*updated = *existing
		updated.VisitCount++
	} else {
		updated.VisitorID = fp.VisitorID
		updated.FirstSeenAt = now
		updated.VisitCount = 1
	}

	updated.LastSeenAt = now
	updated.LinkedID = optional(fp.LinkedID)
	updated.LastIP = optional(fp.IP)
	updated.LastUserAgent = optional(event.UserAgent())
	updated.RiskLabel = assessment.RiskLabel
	updated.RiskScore = assessment.RiskScore
	updated.ConfidenceScore = fp.ConfidenceScore()
	updated.LastRequestID = optional(fp.RequestID)
	updated.Fingerprint = fp
	updated.Signals = event.ClientSignals
	updated.UpdatedAt = now

	return updated
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

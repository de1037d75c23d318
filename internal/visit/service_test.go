package visit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/visitorguard/internal/provider"
	"github.com/richxcame/visitorguard/pkg/common"
)

type mockProfileRepository struct {
	mock.Mock
}

func (m *mockProfileRepository) GetByVisitorID(ctx context.Context, visitorID string) (*VisitorProfile, error) {
	args := m.Called(ctx, visitorID)
	profile, _ := args.Get(0).(*VisitorProfile)
	return profile, args.Error(1)
}

func (m *mockProfileRepository) GetLatestByLinkedID(ctx context.Context, linkedID string) (*VisitorProfile, error) {
	args := m.Called(ctx, linkedID)
	profile, _ := args.Get(0).(*VisitorProfile)
	return profile, args.Error(1)
}

func (m *mockProfileRepository) ListRecent(ctx context.Context, limit int) ([]*VisitorProfile, error) {
	args := m.Called(ctx, limit)
	profiles, _ := args.Get(0).([]*VisitorProfile)
	return profiles, args.Error(1)
}

func (m *mockProfileRepository) CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	args := m.Called(ctx, ip, since)
	return args.Int(0), args.Error(1)
}

func (m *mockProfileRepository) Upsert(ctx context.Context, profile *VisitorProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type mockEventDetailFetcher struct {
	mock.Mock
}

func (m *mockEventDetailFetcher) EventDetail(ctx context.Context, requestID string) (*provider.EventDetail, error) {
	args := m.Called(ctx, requestID)
	detail, _ := args.Get(0).(*provider.EventDetail)
	return detail, args.Error(1)
}

func newTestService(repo ProfileRepository, fetcher EventDetailFetcher, now time.Time) *Service {
	service := NewService(repo, fetcher)
	service.now = func() time.Time { return now }
	return service
}

func cleanEvent(visitorID string) *VisitEvent {
	return &VisitEvent{
		FingerprintResult: &FingerprintResult{
			VisitorID:  visitorID,
			Confidence: &Confidence{Score: 0.99},
			IP:         "203.0.113.7",
		},
		ClientSignals: &ClientSignals{UserAgent: "Mozilla/5.0 test"},
	}
}

func TestHandleVisitRejectsMissingVisitorID(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	cases := []*VisitEvent{
		nil,
		{},
		{FingerprintResult: &FingerprintResult{}},
	}

	for _, event := range cases {
		result, err := service.HandleVisit(ctx, event)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, common.CodeInvalidPayload, common.CodeOf(err))
	}

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHandleVisitCreatesNewProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, now)
	event := cleanEvent("v-new")

	repo.On("GetByVisitorID", ctx, "v-new").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return([]*VisitorProfile{}, nil).Once()
	repo.On("CountRecentByIP", ctx, "203.0.113.7", now.Add(-24*time.Hour)).Return(0, nil).Once()
	repo.On("Upsert", ctx, mock.MatchedBy(func(p *VisitorProfile) bool {
		return p.VisitorID == "v-new" &&
			p.VisitCount == 1 &&
			p.FirstSeenAt.Equal(now) &&
			p.LastSeenAt.Equal(now) &&
			p.RiskLabel == RiskLabelLow &&
			p.LastIP != nil && *p.LastIP == "203.0.113.7" &&
			p.Fingerprint == event.FingerprintResult &&
			p.Signals == event.ClientSignals
	})).Return(nil).Once()

	result, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.True(t, result.IsNewVisitor)
	assert.Equal(t, "v-new", result.DetectedVisitorID)
	assert.Equal(t, "v-new", result.ResolvedVisitorID)
	assert.Empty(t, result.MatchedBy)
	assert.Equal(t, 1, result.VisitCount)
	assert.Equal(t, DecisionAllow, result.Decision)
	assert.True(t, result.IsReferralEligible)
	repo.AssertExpectations(t)
}

func TestHandleVisitIncrementsReturningProfile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	firstSeen := now.Add(-30 * 24 * time.Hour)
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, now)
	event := cleanEvent("v-known")

	existing := &VisitorProfile{
		VisitorID:     "v-known",
		FirstSeenAt:   firstSeen,
		LastSeenAt:    now.Add(-time.Hour),
		VisitCount:    4,
		LastIP:        strPtr("203.0.113.7"),
		LastUserAgent: strPtr("Mozilla/5.0 test"),
		RiskLabel:     RiskLabelLow,
	}

	repo.On("GetByVisitorID", ctx, "v-known").Return(existing, nil).Once()
	repo.On("CountRecentByIP", ctx, "203.0.113.7", now.Add(-24*time.Hour)).Return(1, nil).Once()
	repo.On("Upsert", ctx, mock.MatchedBy(func(p *VisitorProfile) bool {
		return p.VisitorID == "v-known" &&
			p.VisitCount == 5 &&
			p.FirstSeenAt.Equal(firstSeen) &&
			p.LastSeenAt.Equal(now)
	})).Return(nil).Once()

	result, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	assert.False(t, result.IsNewVisitor)
	assert.Equal(t, "visitor_id", result.MatchedBy)
	assert.Equal(t, 5, result.VisitCount)
	assert.Contains(t, result.Reasons, "previously_seen_profile")
	assert.Contains(t, result.Reasons, "stable_returning_profile")
	repo.AssertExpectations(t)
}

func TestHandleVisitSkipsVelocityWithoutAddress(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	event := cleanEvent("v1")
	event.FingerprintResult.IP = ""

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("Upsert", ctx, mock.AnythingOfType("*visit.VisitorProfile")).Return(nil).Once()

	_, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "CountRecentByIP", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestHandleVisitUsesInlineSmartSignals(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	fetcher := new(mockEventDetailFetcher)
	service := newTestService(repo, fetcher, time.Now())

	event := cleanEvent("v1")
	event.FingerprintResult.RequestID = "req-1"
	event.SmartSignals = &SmartSignals{Tampering: true}

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("CountRecentByIP", ctx, mock.Anything, mock.Anything).Return(0, nil).Once()
	repo.On("Upsert", ctx, mock.Anything).Return(nil).Once()

	result, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	assert.Contains(t, result.Reasons, "tampering_detected")
	fetcher.AssertNotCalled(t, "EventDetail", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestHandleVisitFetchesProviderSignals(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	fetcher := new(mockEventDetailFetcher)
	service := newTestService(repo, fetcher, time.Now())

	event := cleanEvent("v1")
	event.FingerprintResult.RequestID = "req-1"

	detail := &provider.EventDetail{}
	detail.Products.Jailbroken = &provider.BoolSignal{}
	detail.Products.Jailbroken.Data.Result = true

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("CountRecentByIP", ctx, mock.Anything, mock.Anything).Return(0, nil).Once()
	repo.On("Upsert", ctx, mock.Anything).Return(nil).Once()
	fetcher.On("EventDetail", ctx, "req-1").Return(detail, nil).Once()

	result, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	assert.Contains(t, result.Reasons, "jailbroken_device")
	fetcher.AssertExpectations(t)
}

func TestHandleVisitDegradesOnProviderFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	fetcher := new(mockEventDetailFetcher)
	service := newTestService(repo, fetcher, time.Now())

	event := cleanEvent("v1")
	event.FingerprintResult.RequestID = "req-1"

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("CountRecentByIP", ctx, mock.Anything, mock.Anything).Return(0, nil).Once()
	repo.On("Upsert", ctx, mock.Anything).Return(nil).Once()
	fetcher.On("EventDetail", ctx, "req-1").Return(nil, errors.New("provider timeout")).Once()

	result, err := service.HandleVisit(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, result.Decision)
	assert.Empty(t, result.Reasons)
	repo.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestHandleVisitStoreReadFailurePerformsNoUpsert(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, errors.New("connection refused")).Once()

	result, err := service.HandleVisit(ctx, cleanEvent("v1"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, common.CodeStoreUnavailable, common.CodeOf(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHandleVisitVelocityFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("CountRecentByIP", ctx, mock.Anything, mock.Anything).Return(0, errors.New("query canceled")).Once()

	_, err := service.HandleVisit(ctx, cleanEvent("v1"))
	require.Error(t, err)
	assert.Equal(t, common.CodeStoreUnavailable, common.CodeOf(err))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestHandleVisitUpsertFailureSurfacesStoreError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	repo.On("GetByVisitorID", ctx, "v1").Return(nil, nil).Once()
	repo.On("ListRecent", ctx, 300).Return(nil, nil).Once()
	repo.On("CountRecentByIP", ctx, mock.Anything, mock.Anything).Return(0, nil).Once()
	repo.On("Upsert", ctx, mock.Anything).Return(errors.New("write conflict")).Once()

	_, err := service.HandleVisit(ctx, cleanEvent("v1"))
	require.Error(t, err)
	assert.Equal(t, common.CodeStoreUnavailable, common.CodeOf(err))
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	repo := new(mockProfileRepository)
	service := newTestService(repo, nil, time.Now())

	stored := &VisitorProfile{VisitorID: "v1"}
	repo.On("GetByVisitorID", ctx, "v1").Return(stored, nil).Once()
	repo.On("GetByVisitorID", ctx, "v-missing").Return(nil, nil).Once()

	profile, err := service.GetProfile(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, stored, profile)

	profile, err = service.GetProfile(ctx, "v-missing")
	require.NoError(t, err)
	assert.Nil(t, profile)

	_, err = service.GetProfile(ctx, "")
	assert.Equal(t, common.CodeInvalidPayload, common.CodeOf(err))
	repo.AssertExpectations(t)
}

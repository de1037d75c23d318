package visit

import (
	"context"

	"github.com/richxcame/visitorguard/pkg/common"
)

// recentProfilesCap bounds the candidate window scanned for similarity
// matching.
const recentProfilesCap = 300

// Resolver determines whether a visit belongs to an already known identity
type Resolver struct {
	repo ProfileRepository
}

// NewResolver creates a new identity resolver
func NewResolver(repo ProfileRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve runs the matching cascade, first hit wins:
//  1. exact visitor id lookup (authoritative, trusted outright)
//  2. most recent profile sharing the event's linked id
//  3. best similarity score over the recent-profile window, accepted at or
//     above the threshold
//
// Candidates are scanned in last-seen-descending order and a later
// candidate replaces the best only on a strictly greater score, so among
// equal scores the most recently seen profile wins.
//
// Any store-read error aborts resolution; no guessed result is returned.
func (r *Resolver) Resolve(ctx context.Context, event *VisitEvent) (*VisitorProfile, MatchResult, error) {
	fp := event.FingerprintResult

	profile, err := r.repo.GetByVisitorID(ctx, fp.VisitorID)
	if err != nil {
		return nil, MatchResult{}, common.NewStoreUnavailableError("visitor id lookup failed", err)
	}
	if profile != nil {
		return profile, MatchResult{Strategy: MatchByVisitorID}, nil
	}

	if fp.LinkedID != "" {
		profile, err = r.repo.GetLatestByLinkedID(ctx, fp.LinkedID)
		if err != nil {
			return nil, MatchResult{}, common.NewStoreUnavailableError("linked id lookup failed", err)
		}
		if profile != nil {
			return profile, MatchResult{Strategy: MatchByLinkedID}, nil
		}
	}

	candidates, err := r.repo.ListRecent(ctx, recentProfilesCap)
	if err != nil {
		return nil, MatchResult{}, common.NewStoreUnavailableError("recent profile scan failed", err)
	}

	current := event.Snapshot()
	var best *VisitorProfile
	bestScore := 0

	for _, candidate := range candidates {
		if score := SimilarityScore(current, candidate.Snapshot()); score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if best != nil && bestScore >= similarityThreshold {
		return best, MatchResult{Strategy: MatchBySimilarity, Similarity: bestScore}, nil
	}

	return nil, MatchResult{}, nil
}

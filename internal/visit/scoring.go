package visit

const (
	highRiskThreshold   = 45
	mediumRiskThreshold = 20

	velocityHighCount   = 3
	velocityMediumCount = 2

	stableProfileConfidence = 0.98
	stableProfileDiscount   = 5
)

// Score runs the additive risk heuristic over one visit. It is
// deterministic and side-effect free; every point contribution surfaces as
// a reason tag so the decision stays explainable.
func Score(in ScoreInput) RiskAssessment {
	score := 0
	reasons := []string{}

	for _, rule := range signalRules {
		if rule.applies(in) {
			score += rule.points
			reasons = append(reasons, rule.tag(in))
		}
	}

	// At most one velocity bucket applies
	if in.RecentSameIPCount >= velocityHighCount {
		score += 25
		reasons = append(reasons, "ip_velocity_high")
	} else if in.RecentSameIPCount == velocityMediumCount {
		score += 12
		reasons = append(reasons, "ip_velocity_medium")
	}

	for _, rule := range historyRules {
		if rule.applies(in) {
			score += rule.points
			reasons = append(reasons, rule.tag(in))
		}
	}

	// Discount for a quiet, confidently re-identified returning profile;
	// applied last, floored at zero
	if in.Existing != nil &&
		in.Confidence != nil && *in.Confidence >= stableProfileConfidence &&
		!in.Flags.Any() &&
		in.RecentSameIPCount <= 1 {
		score -= stableProfileDiscount
		if score < 0 {
			score = 0
		}
		reasons = append(reasons, "stable_returning_profile")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	label := RiskLabelLow
	switch {
	case score >= highRiskThreshold:
		label = RiskLabelHigh
	case score >= mediumRiskThreshold:
		label = RiskLabelMedium
	}

	fraudSuspected := label == RiskLabelHigh
	referralEligible := in.Existing == nil && label == RiskLabelLow

	decision := DecisionReview
	if referralEligible {
		decision = DecisionAllow
	} else if fraudSuspected {
		decision = DecisionDenyReferral
	}

	return RiskAssessment{
		RiskScore:          score,
		LegitimacyScore:    100 - score,
		RiskLabel:          label,
		Reasons:            reasons,
		IsFraudSuspected:   fraudSuspected,
		Decision:           decision,
		IsReferralEligible: referralEligible,
	}
}

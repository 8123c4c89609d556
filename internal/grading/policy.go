package grading

import (
	"path"
	"strings"
	"time"
)

// BranchEligible reports whether a candidate's branch matches the
// assignment's comma-separated glob patterns. An empty pattern list admits
// every class member.
func BranchEligible(patterns, branch string) bool {
	patterns = strings.TrimSpace(patterns)
	if patterns == "" {
		return true
	}

	branch = strings.ToUpper(strings.TrimSpace(branch))
	for _, raw := range strings.Split(patterns, ",") {
		pattern := strings.ToUpper(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// LateOutcome classifies a submission instant against the attempt deadline
// and the assignment's late policy.
type LateOutcome struct {
	Accept     bool
	Late       bool
	PenaltyPct float64
}

// ClassifySubmission decides whether a submission is accepted, whether it
// counts as late and which penalty applies. Policy "reject" refuses anything
// past the deadline; "penalty" accepts submissions inside the grace period
// with a percentage deduction.
func ClassifySubmission(policy string, submittedAt, deadline time.Time, graceMin int, penaltyPct float64) LateOutcome {
	if !submittedAt.After(deadline) {
		return LateOutcome{Accept: true}
	}

	if policy != "penalty" {
		return LateOutcome{}
	}

	grace := deadline.Add(time.Duration(graceMin) * time.Minute)
	if submittedAt.After(grace) {
		return LateOutcome{Late: true}
	}

	return LateOutcome{Accept: true, Late: true, PenaltyPct: penaltyPct}
}

// AttemptDeadline computes the hard deadline for an attempt started at the
// given instant: the per-attempt duration capped by the assignment close.
func AttemptDeadline(startedAt time.Time, durationMin int, closesAt time.Time) time.Time {
	deadline := startedAt.Add(time.Duration(durationMin) * time.Minute)
	if deadline.After(closesAt) {
		return closesAt
	}
	return deadline
}

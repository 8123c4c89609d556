package grading

import (
	"sort"
	"strings"
)

// QuestionInput is the grading view of a question: its kind, the correct
// option keys and its relative weight within the quiz.
type QuestionInput struct {
	ID          uint
	Kind        string
	CorrectKeys []string
	Weight      float64
}

// Rules are the assignment-level scoring parameters.
type Rules struct {
	TotalMarks       float64
	NegativeFraction float64
	PassPercent      float64
}

// QuestionScore is the per-question grading outcome.
type QuestionScore struct {
	QuestionID uint     `json:"question_id"`
	Answered   bool     `json:"answered"`
	Correct    *bool    `json:"correct,omitempty"`
	Marks      float64  `json:"marks"`
	MaxMarks   float64  `json:"max_marks"`
	Reason     string   `json:"reason"`
	Selected   []string `json:"selected,omitempty"`
}

// Result is the graded outcome of a full attempt.
type Result struct {
	RawScore  float64         `json:"raw_score"`
	Score     float64         `json:"score"`
	Passed    bool            `json:"passed"`
	Breakdown []QuestionScore `json:"breakdown"`
}

// Grade scores every question, converts weightage to marks against
// rules.TotalMarks and applies the late penalty percentage (0 for on-time
// submissions). The final score never goes below zero.
func Grade(questions []QuestionInput, answers map[uint][]string, rules Rules, latePenaltyPct float64) Result {
	totalWeight := 0.0
	for _, q := range questions {
		if q.Weight > 0 {
			totalWeight += q.Weight
		}
	}

	marksPerWeight := 0.0
	if totalWeight > 0 && rules.TotalMarks > 0 {
		marksPerWeight = rules.TotalMarks / totalWeight
	}

	raw := 0.0
	breakdown := make([]QuestionScore, 0, len(questions))
	for _, q := range questions {
		weight := q.Weight
		if weight < 0 {
			weight = 0
		}
		maxMarks := weight * marksPerWeight
		score := scoreQuestion(q, answers[q.ID], maxMarks, rules.NegativeFraction)
		raw += score.Marks
		breakdown = append(breakdown, score)
	}

	if raw < 0 {
		raw = 0
	}

	score := raw
	if latePenaltyPct > 0 {
		score = raw * (1 - latePenaltyPct/100)
		if score < 0 {
			score = 0
		}
	}

	passed := true
	if rules.PassPercent > 0 && rules.TotalMarks > 0 {
		passed = score/rules.TotalMarks*100 >= rules.PassPercent
	}

	return Result{RawScore: raw, Score: score, Passed: passed, Breakdown: breakdown}
}

func scoreQuestion(q QuestionInput, selected []string, maxMarks, negativeFraction float64) QuestionScore {
	correct := normalizeKeySet(q.CorrectKeys)
	chosen := normalizeKeySet(selected)

	score := QuestionScore{QuestionID: q.ID, MaxMarks: maxMarks, Selected: chosen}

	if len(correct) == 0 {
		score.Reason = "malformed_answer_key"
		return score
	}

	if len(chosen) == 0 {
		score.Reason = "unanswered"
		return score
	}
	score.Answered = true

	kind := strings.TrimSpace(strings.ToLower(q.Kind))
	switch kind {
	case "multiple":
		// Exact-set match, no partial credit and no negative marking.
		if equalKeySets(chosen, correct) {
			score.Correct = boolPtr(true)
			score.Marks = maxMarks
			score.Reason = "correct"
		} else {
			score.Correct = boolPtr(false)
			score.Reason = "wrong"
		}
	default:
		// single and truefalse accept exactly one selection.
		if len(chosen) > 1 {
			score.Correct = boolPtr(false)
			score.Reason = "malformed_payload"
			return score
		}
		if strings.EqualFold(chosen[0], correct[0]) {
			score.Correct = boolPtr(true)
			score.Marks = maxMarks
			score.Reason = "correct"
		} else {
			score.Correct = boolPtr(false)
			score.Marks = -maxMarks * negativeFraction
			score.Reason = "wrong"
		}
	}

	return score
}

func normalizeKeySet(in []string) []string {
	set := map[string]struct{}{}
	for _, v := range in {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		set[strings.ToUpper(s)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalKeySets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func boolPtr(v bool) *bool {
	return &v
}

package review

import "slices"

// Classify computes the review state of one entry.
//
// live tells whether the segment is still in some corpus's input. current and
// baseline hold one output per compared stage, in pipeline order; an empty
// baseline output is never compared. The checks run in this order: deleted,
// added, missing, golden, then the first stage whose output differs from
// its baseline decides between changed_final (the last stage) and
// changed_any. changePoint is that stage, or -1.
func Classify(live bool, current, baseline, gold []string) (state State, status GoldStatus, changePoint int) {
	changePoint = -1
	status = GoldNone
	last := len(current) - 1

	switch {
	case !live:
		return StateDeleted, status, changePoint
	case len(baseline) == 0 || baseline[0] == "":
		return StateAdded, status, changePoint
	}

	if len(gold) > 0 {
		status = GoldUnmatched
		if last >= 0 && slices.Contains(gold, current[last]) {
			status = GoldMatched
		}
	}

	for i := range current {
		if i < len(baseline) && baseline[i] != "" && current[i] != baseline[i] {
			changePoint = i
			break
		}
	}

	switch {
	case last < 0 || current[last] == "":
		return StateMissing, status, changePoint
	case status == GoldMatched:
		return StateGolden, status, changePoint
	case changePoint == last:
		return StateChangedFinal, status, changePoint
	case changePoint >= 0:
		return StateChangedAny, status, changePoint
	}
	return StateUnchanged, status, changePoint
}

package decision

import "ragbench/internal/domain"

// Classify maps (answerability, refusal, faithfulness) to exactly one outcome label.
// faithful is ignored whenever refused is true or the item is unanswerable.
func Classify(isAnswerable, refused, faithful bool) domain.OutcomeLabel {
	switch {
	case isAnswerable && refused:
		return domain.OutcomeFalseRefusal
	case isAnswerable && faithful:
		return domain.OutcomeAnswerSuccess
	case isAnswerable:
		return domain.OutcomeUnfaithfulAnswer
	case refused:
		return domain.OutcomeCorrectRefusal
	default:
		return domain.OutcomeHallucination
	}
}

// ClassifyVerdict classifies with a possibly absent verdict. A missing verdict on a
// non-refusing answerable item counts as unfaithful.
func ClassifyVerdict(isAnswerable, refused bool, v *domain.Verdict) domain.OutcomeLabel {
	faithful := v != nil && v.Faithful
	return Classify(isAnswerable, refused, faithful)
}

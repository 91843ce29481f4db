package schedule

import "context"

// =============================================================================
// AVAILABILITY RULE EVALUATOR
// =============================================================================

type Decision string

const (
	DecisionAllow     Decision = "allow"
	DecisionWarn      Decision = "warn"
	DecisionHardBlock Decision = "hard_block"
)

// Evaluation is the outcome of matching configured rules against one
// candidate slot.
type Evaluation struct {
	Decision Decision
	Matched  []AvailabilityRule
}

// RuleEvaluator decides allow / warn / hard_block for a provider, service,
// date, and time block. Rules are static configuration; the evaluator
// never mutates them.
type RuleEvaluator struct {
	Rules RuleStore
}

func NewRuleEvaluator(rules RuleStore) *RuleEvaluator {
	return &RuleEvaluator{Rules: rules}
}

// Evaluate selects rules matching (provider, service, weekday) with an
// intersecting time block, then resolves ties toward the most restrictive
// outcome: hard beats soft beats allow.
func (e *RuleEvaluator) Evaluate(ctx context.Context, providerID ProviderID, serviceID ServiceID, d Date, block TimeBlock) (Evaluation, error) {
	rules, err := e.Rules.RulesFor(ctx, providerID)
	if err != nil {
		return Evaluation{}, err
	}

	eval := Evaluation{Decision: DecisionAllow}
	for _, r := range rules {
		if r.ServiceID != serviceID || r.DayOfWeek != d.Weekday() {
			continue
		}
		if !r.Block.Overlaps(block) {
			continue
		}
		eval.Matched = append(eval.Matched, r)

		if r.Type != RuleBlock {
			continue
		}
		switch r.Enforcement {
		case EnforceHard:
			eval.Decision = DecisionHardBlock
		case EnforceSoft:
			if eval.Decision != DecisionHardBlock {
				eval.Decision = DecisionWarn
			}
		}
	}
	return eval, nil
}

package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/schedule-engine/schedule"
	"github.com/meridian/schedule-engine/schedule/store"
)

func newEvaluator(rules ...schedule.AvailabilityRule) *schedule.RuleEvaluator {
	mem := store.NewMemory()
	for _, r := range rules {
		mem.AddRule(r)
	}
	return schedule.NewRuleEvaluator(mem)
}

// monday is a convenient fixed weekday for rule matching tests.
var monday = schedule.NewDate(2026, time.January, 5)

func TestEvaluate_NoRules_Allows(t *testing.T) {
	e := newEvaluator()

	eval, err := e.Evaluate(context.Background(), "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)

	assert.Equal(t, schedule.DecisionAllow, eval.Decision)
	assert.Empty(t, eval.Matched)
}

func TestEvaluate_HardBlock(t *testing.T) {
	// GIVEN: A hard block rule for Monday AM on the clinic service
	e := newEvaluator(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
		Reason: "OR day",
	})

	eval, err := e.Evaluate(context.Background(), "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)

	assert.Equal(t, schedule.DecisionHardBlock, eval.Decision)
	require.Len(t, eval.Matched, 1)
	assert.Equal(t, "OR day", eval.Matched[0].Reason)
}

func TestEvaluate_SoftBlock_Warns(t *testing.T) {
	e := newEvaluator(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceSoft,
	})

	eval, err := e.Evaluate(context.Background(), "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)

	assert.Equal(t, schedule.DecisionWarn, eval.Decision)
}

func TestEvaluate_HardBeatsSoft(t *testing.T) {
	// GIVEN: Both a soft and a hard block match the same slot
	e := newEvaluator(
		schedule.AvailabilityRule{
			ID: "soft", ProviderID: "p1", ServiceID: "clinic",
			DayOfWeek: time.Monday, Block: schedule.BlockAM,
			Type: schedule.RuleBlock, Enforcement: schedule.EnforceSoft,
		},
		schedule.AvailabilityRule{
			ID: "hard", ProviderID: "p1", ServiceID: "clinic",
			DayOfWeek: time.Monday, Block: schedule.BlockAM,
			Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
		},
	)

	eval, err := e.Evaluate(context.Background(), "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)

	// THEN: The most restrictive outcome wins
	assert.Equal(t, schedule.DecisionHardBlock, eval.Decision)
	assert.Len(t, eval.Matched, 2)
}

func TestEvaluate_BlockOverlapMatching(t *testing.T) {
	// GIVEN: A hard block scoped to PM only
	e := newEvaluator(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockPM,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
	})
	ctx := context.Background()

	// AM does not intersect PM
	eval, err := e.Evaluate(ctx, "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)
	assert.Equal(t, schedule.DecisionAllow, eval.Decision)

	// A full-day candidate intersects the PM rule
	eval, err = e.Evaluate(ctx, "p1", "clinic", monday, schedule.BlockBoth)
	require.NoError(t, err)
	assert.Equal(t, schedule.DecisionHardBlock, eval.Decision)
}

func TestEvaluate_WeekdayAndServiceScoping(t *testing.T) {
	e := newEvaluator(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockBoth,
		Type: schedule.RuleBlock, Enforcement: schedule.EnforceHard,
	})
	ctx := context.Background()

	// Same slot on a Tuesday: no match
	tuesday := monday.AddDays(1)
	eval, err := e.Evaluate(ctx, "p1", "clinic", tuesday, schedule.BlockAM)
	require.NoError(t, err)
	assert.Equal(t, schedule.DecisionAllow, eval.Decision)

	// Different service on the blocked Monday: no match
	eval, err = e.Evaluate(ctx, "p1", "surgery", monday, schedule.BlockAM)
	require.NoError(t, err)
	assert.Equal(t, schedule.DecisionAllow, eval.Decision)
}

func TestEvaluate_AllowRulesNeverEscalate(t *testing.T) {
	// GIVEN: An allow rule on the slot (documenting intent, not blocking)
	e := newEvaluator(schedule.AvailabilityRule{
		ID: "r1", ProviderID: "p1", ServiceID: "clinic",
		DayOfWeek: time.Monday, Block: schedule.BlockAM,
		Type: schedule.RuleAllow, Enforcement: schedule.EnforceHard,
	})

	eval, err := e.Evaluate(context.Background(), "p1", "clinic", monday, schedule.BlockAM)
	require.NoError(t, err)

	// THEN: Matched is recorded but the decision stays allow
	assert.Equal(t, schedule.DecisionAllow, eval.Decision)
	assert.Len(t, eval.Matched, 1)
}

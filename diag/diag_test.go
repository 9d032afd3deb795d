package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerAppendOnly(t *testing.T) {
	led := NewLedger()

	led.AddWarning(Warning{Kind: KindSyntaxDifference, Severity: SeverityInfo, Message: "first"})
	led.AddRule("rule one")
	led.Warnf(KindManualReview, SeverityWarning, "look here", "second %d", 2)
	led.Rulef("rule %d", 2)

	warnings := led.Warnings()
	assert.Len(t, warnings, 2)
	assert.Equal(t, "first", warnings[0].Message)
	assert.Equal(t, "second 2", warnings[1].Message)
	assert.Equal(t, "look here", warnings[1].Suggestion)

	rules := led.Rules()
	assert.Equal(t, []string{"rule one", "rule 2"}, rules)

	// Earlier entries never move or change as more are appended.
	led.AddWarning(Warning{Kind: KindPartialSupport, Severity: SeverityError, Message: "third"})
	assert.Equal(t, "first", led.Warnings()[0].Message)
	assert.Equal(t, "second 2", led.Warnings()[1].Message)
	assert.Len(t, led.Warnings(), 3)
}

func TestLedgerNoDeduplication(t *testing.T) {
	led := NewLedger()
	for i := 0; i < 3; i++ {
		led.AddRule("same rule")
		led.AddWarning(Warning{Kind: KindPartialSupport, Severity: SeverityInfo, Message: "same warning"})
	}
	// Repeated firings count occurrences; collapsing them would lose that.
	assert.Len(t, led.Rules(), 3)
	assert.Len(t, led.Warnings(), 3)
}

func TestLedgerCount(t *testing.T) {
	led := NewLedger()
	led.AddWarning(Warning{Severity: SeverityInfo})
	led.AddWarning(Warning{Severity: SeverityWarning})
	led.AddWarning(Warning{Severity: SeverityError})
	led.AddWarning(Warning{Severity: SeverityError})

	assert.Equal(t, 4, led.Count(SeverityInfo))
	assert.Equal(t, 3, led.Count(SeverityWarning))
	assert.Equal(t, 2, led.Count(SeverityError))
}

func TestSeverityOrderAndString(t *testing.T) {
	assert.True(t, SeverityInfo < SeverityWarning)
	assert.True(t, SeverityWarning < SeverityError)
	assert.Equal(t, "info", SeverityInfo.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
}

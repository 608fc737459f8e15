package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionFor_EveryTierIsMapped(t *testing.T) {
	want := map[Tier]Action{
		TierQualified: ActionTriggerWorkflow,
		TierHot:       ActionTriggerWorkflow,
		TierWarm:      ActionNurture,
		TierCold:      ActionNurture,
		TierGreatFit:  ActionManualReview,
		TierGoodFit:   ActionNurture,
		TierNotReady:  ActionNurture,
	}
	assert.Len(t, want, len(AllTiers()), "every tier needs an explicit action")
	for _, tier := range AllTiers() {
		action, ok := want[tier]
		if assert.True(t, ok, "tier %s has no expected action", tier) {
			assert.Equal(t, action, ActionFor(tier), string(tier))
		}
	}
}

func TestActionFor_UnknownTier(t *testing.T) {
	assert.Equal(t, ActionManualReview, ActionFor(Tier("lukewarm")))
	assert.Equal(t, ActionManualReview, ActionForString(""))
	assert.Equal(t, ActionTriggerWorkflow, ActionForString("hot"))
}

func TestParseTier(t *testing.T) {
	tier, ok := ParseTier("great-fit")
	assert.True(t, ok)
	assert.Equal(t, TierGreatFit, tier)

	_, ok = ParseTier("QUALIFIED")
	assert.False(t, ok)
}

func TestExtractContact(t *testing.T) {
	responses := []Response{
		{QuestionNumber: 2, Answer: json.RawMessage(`{"email":"wrong@example.com"}`)},
		{QuestionNumber: 1, Answer: json.RawMessage(`{"name":" Ada Lovelace ","email":"ada@example.com","company":"Engines Ltd","phone":"+44 1","title":"CTO"}`)},
	}
	c := ExtractContact(responses)
	assert.Equal(t, Contact{
		Name:    "Ada Lovelace",
		Email:   "ada@example.com",
		Company: "Engines Ltd",
		Phone:   "+44 1",
		Title:   "CTO",
	}, c)
}

func TestExtractContact_MissingOrMalformed(t *testing.T) {
	cases := map[string][]Response{
		"no question 1": {{QuestionNumber: 2, Answer: json.RawMessage(`{"name":"x"}`)}},
		"string answer": {{QuestionNumber: 1, Answer: json.RawMessage(`"Ada"`)}},
		"array answer":  {{QuestionNumber: 1, Answer: json.RawMessage(`["Ada"]`)}},
		"invalid json":  {{QuestionNumber: 1, Answer: json.RawMessage(`{"name":`)}},
		"empty answer":  {{QuestionNumber: 1}},
		"nil responses": nil,
	}
	for name, responses := range cases {
		assert.True(t, ExtractContact(responses).IsEmpty(), name)
	}

	partial := ExtractContact([]Response{{QuestionNumber: 1, Answer: json.RawMessage(`{"name":"Ada","email":42}`)}})
	assert.Equal(t, "Ada", partial.Name)
	assert.Empty(t, partial.Email, "non-string fields are ignored")
}

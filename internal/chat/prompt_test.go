package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/6ixhq/creator/internal/model"
)

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	res := Resolve(model.PlanPro, &Request{Model: "max-core", ContentMode: "code", Theme: "light"})
	p := PromptParamsFrom(res)

	first := BuildSystemPrompt(p)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildSystemPrompt(p))
	}
}

func TestBuildSystemPrompt_DisclosesSubstitution(t *testing.T) {
	res := Resolve(model.PlanFree, &Request{Model: "max-thinking"})
	prompt := BuildSystemPrompt(PromptParamsFrom(res))

	assert.Contains(t, prompt, `"max-thinking"`)
	assert.Contains(t, prompt, "not available on the free plan")
	assert.Contains(t, prompt, "6IX Core")
}

func TestBuildSystemPrompt_NoDisclosureWithoutSubstitution(t *testing.T) {
	res := Resolve(model.PlanMax, &Request{Model: "max-thinking"})
	prompt := BuildSystemPrompt(PromptParamsFrom(res))
	assert.NotContains(t, prompt, "not available on the")
}

func TestBuildSystemPrompt_ImageSentinel(t *testing.T) {
	prompt := BuildSystemPrompt(PromptParams{Plan: model.PlanPro, ModelLabel: "6IX Pro", ContentMode: ContentImage})
	assert.Contains(t, prompt, ImageSentinelPrefix)
}

func TestBuildSystemPrompt_PlanSpecificGuidance(t *testing.T) {
	free := BuildSystemPrompt(PromptParams{Plan: model.PlanFree, ModelLabel: "6IX Core"})
	max := BuildSystemPrompt(PromptParams{Plan: model.PlanMax, ModelLabel: "6IX Max"})

	assert.Contains(t, free, "under 40 lines")
	assert.Contains(t, max, "full files are fine")
	assert.NotEqual(t, free, max)

	for _, p := range []string{free, max} {
		assert.True(t, strings.Contains(p, "House rules:"))
		assert.True(t, strings.Contains(p, "About 6IX:"))
	}
}

func TestBuildSystemPrompt_ControlTags(t *testing.T) {
	on := BuildSystemPrompt(PromptParams{Plan: model.PlanPro, AllowControlTags: true})
	off := BuildSystemPrompt(PromptParams{Plan: model.PlanPro})
	assert.Contains(t, on, "[[suggest:")
	assert.Contains(t, off, "Do not emit interface control tags")
}

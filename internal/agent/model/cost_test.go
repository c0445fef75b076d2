package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestResolvePricing(t *testing.T) {
	p := ResolvePricing("gemini-2.5-flash")
	assert.Greater(t, p.InputPerM, 0.0)
	assert.Greater(t, p.OutputPerM, 0.0)

	unknown := ResolvePricing("some-future-model")
	assert.Zero(t, unknown.InputPerM)
	assert.Zero(t, unknown.OutputPerM)
}

func TestComputeCost(t *testing.T) {
	p := Pricing{InputPerM: 1.0, OutputPerM: 2.0}

	in, out, total := ComputeCost(&schema.TokenUsage{
		PromptTokens:     1_000_000,
		CompletionTokens: 500_000,
	}, p)
	assert.InDelta(t, 1.0, in, 1e-9)
	assert.InDelta(t, 1.0, out, 1e-9)
	assert.InDelta(t, 2.0, total, 1e-9)
}

func TestComputeCost_NilUsage(t *testing.T) {
	in, out, total := ComputeCost(nil, Pricing{InputPerM: 1, OutputPerM: 1})
	assert.Zero(t, in)
	assert.Zero(t, out)
	assert.Zero(t, total)
}

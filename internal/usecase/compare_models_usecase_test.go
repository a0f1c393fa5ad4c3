package usecase_test

import (
	"context"
	"errors"
	"testing"

	"ragbench/internal/domain"
	"ragbench/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCompareModels_OneRowPerModel(t *testing.T) {
	items, ret := benchFixture()
	base, judge := answeringGateways()
	runner := newRunner(ret, base, judge, 2)

	mini := &mockGenerator{model: "gpt-4.1-mini"}
	mini.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Answer{
			Text:  "I don't know based on the provided context.",
			Model: "gpt-4.1-mini",
			Usage: domain.TokenUsage{PromptTokens: 200, CompletionTokens: 10, TotalTokens: 210},
		}, nil)
	big, _ := answeringGateways()

	uc := usecase.NewCompareModelsUsecase(runner, []domain.Generator{mini, big}, nil)
	rows, err := uc.Execute(context.Background(), items, defaultThresholds)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "gpt-4.1-mini", rows[0].Model)
	assert.Equal(t, "gpt-4o", rows[1].Model)

	// The refusing model is never judged.
	assert.Zero(t, rows[0].FaithfulnessRate)
	assert.Equal(t, 0, rows[0].Summary.JudgedCount)
	assert.Equal(t, 2, rows[0].Summary.Counts.FalseRefusal)
	assert.InDelta(t, 1.0, rows[1].FaithfulnessRate, 1e-9)
	assert.Greater(t, rows[1].MeanCostUSD, 0.0)
	assert.Greater(t, rows[1].MeanRetrievalMs, 0.0)

	base.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	mini.AssertNumberOfCalls(t, "Generate", 1)
}

func TestCompareModels_NoGenerators(t *testing.T) {
	items, ret := benchFixture()
	gen, judge := answeringGateways()

	_, err := usecase.NewCompareModelsUsecase(newRunner(ret, gen, judge, 1), nil, nil).
		Execute(context.Background(), items, defaultThresholds)

	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

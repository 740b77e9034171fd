package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testN  = 10000
	testFP = 0.001
)

func TestNewWithEstimates_InvalidParams(t *testing.T) {
	t.Parallel()

	_, err := NewWithEstimates(0, testFP)
	assert.ErrorIs(t, err, ErrZeroN)

	_, err = NewWithEstimates(testN, 0)
	assert.ErrorIs(t, err, ErrInvalidFP)

	_, err = NewWithEstimates(testN, 1)
	assert.ErrorIs(t, err, ErrInvalidFP)
}

func TestNewWithEstimates_Sizing(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	// ~14.4 bits per element at fp=0.001.
	assert.Greater(t, f.BitCount(), uint(14*testN))
	assert.Less(t, f.BitCount(), uint(15*testN))
	assert.GreaterOrEqual(t, f.HashCount(), uint(1))
}

func TestTest_NeverAdded(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	assert.False(t, f.Test([]byte("never added")))
}

func TestAdd_ThenTest(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	f.Add([]byte("document text"))

	assert.True(t, f.Test([]byte("document text")))
	assert.Equal(t, uint(1), f.Count())
}

func TestTestAndAdd_FirstSeenWins(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	assert.False(t, f.TestAndAdd([]byte("body")), "first occurrence is absent")
	assert.True(t, f.TestAndAdd([]byte("body")), "second occurrence is present")
}

func TestFalsePositiveRate(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	for i := range testN {
		f.Add(fmt.Appendf(nil, "present-%d", i))
	}

	falsePositives := 0

	for i := range testN {
		if f.Test(fmt.Appendf(nil, "absent-%d", i)) {
			falsePositives++
		}
	}

	// Allow an order of magnitude headroom over the configured 0.1%.
	assert.Less(t, falsePositives, testN/100)
}

func TestFillRatio_GrowsWithInserts(t *testing.T) {
	t.Parallel()

	f, err := NewWithEstimates(testN, testFP)
	require.NoError(t, err)

	assert.Zero(t, f.FillRatio())

	for i := range testN {
		f.Add(fmt.Appendf(nil, "doc-%d", i))
	}

	// At capacity the fill ratio approaches ln 2.
	assert.InDelta(t, 0.5, f.FillRatio(), 0.1)
}

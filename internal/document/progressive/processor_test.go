package progressive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	pages []string
	err   error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) ([]string, error) {
	return s.pages, s.err
}

func goodPages() []string {
	return []string{
		"# Introduction\n\nThis document describes the application process in clear detail for all applicants involved.",
		"# Requirements\n\nApplicants must provide identification, proof of residence, and a completed application form here.",
	}
}

func TestExtractWithSmartRouting_FastTierMeetsTarget(t *testing.T) {
	opts := DefaultOptions()
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast: &stubExtractor{pages: goodPages()},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.10, "", true)
	require.True(t, result.Success)
	assert.Equal(t, TierFast, result.TierUsed)
	assert.Equal(t, []string{TierFast}, result.TiersAttempted)
}

func TestExtractWithSmartRouting_EscalatesToBalanced(t *testing.T) {
	opts := DefaultOptions()
	opts.Balanced.Enabled = true
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast:     &stubExtractor{pages: []string{"a", "b"}},
		TierBalanced: &stubExtractor{pages: goodPages()},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.70, "", true)
	require.True(t, result.Success)
	assert.Equal(t, TierBalanced, result.TierUsed)
	assert.Equal(t, []string{TierFast, TierBalanced}, result.TiersAttempted)
}

func TestExtractWithSmartRouting_QuotaErrorFallsBackToFast(t *testing.T) {
	opts := DefaultOptions()
	opts.Balanced.Enabled = true
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast:     &stubExtractor{pages: goodPages()},
		TierBalanced: &stubExtractor{err: errors.New("429 rate limited")},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.99, TierBalanced, true)
	require.True(t, result.Success)
	assert.Equal(t, TierFast, result.TierUsed)
}

func TestExtractWithSmartRouting_AllTiersFail(t *testing.T) {
	opts := DefaultOptions()
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast: &stubExtractor{err: errors.New("boom")},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.70, "", true)
	assert.False(t, result.Success)
	assert.Equal(t, "all tiers failed", result.Error)
}

func TestExtractWithSmartRouting_CostAccumulatesAcrossTiers(t *testing.T) {
	opts := DefaultOptions()
	opts.Balanced.Enabled = true
	opts.Balanced.Cost = 0.01
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast:     &stubExtractor{pages: []string{"a"}},
		TierBalanced: &stubExtractor{pages: goodPages()},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.70, "", true)
	require.True(t, result.Success)
	assert.Greater(t, result.Cost, 0.0)
}

func TestExtractWithSmartRouting_NoAutoRetryStopsAfterFirstTier(t *testing.T) {
	opts := DefaultOptions()
	opts.Balanced.Enabled = true
	p := NewProcessor(opts, map[string]TierExtractor{
		TierFast:     &stubExtractor{pages: []string{"a", "b"}},
		TierBalanced: &stubExtractor{pages: goodPages()},
	}, nil)

	result := p.ExtractWithSmartRouting(context.Background(), []byte("src"), 0.99, "", false)
	require.True(t, result.Success)
	assert.Equal(t, []string{TierFast}, result.TiersAttempted)
}

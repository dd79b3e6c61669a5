// Package progressive implements the Progressive Processor: escalates
// document extraction through fast, balanced, and premium tiers until
// a target quality score is met, tracking cumulative cost and the
// tiers attempted.
package progressive

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/document/quality"
)

// Tier names, in their natural escalation order.
const (
	TierFast     = "fast"
	TierBalanced = "balanced"
	TierPremium  = "premium"
)

// Default per-tier cost-per-page and quality thresholds.
const (
	CostFast     = 0.0
	CostBalanced = 0.0
	CostPremium  = 0.0013

	ThresholdFast     = 0.70
	ThresholdBalanced = 0.80
	ThresholdPremium  = 0.85
)

// TierExtractor produces pages of text for one tier. The fast tier is
// backed by the local Document Processor; balanced/premium are backed
// by a remote vision-language model.
type TierExtractor interface {
	Extract(ctx context.Context, source []byte) ([]string, error)
}

// ErrQuotaExhausted marks a tier failure as rate/quota related, which
// triggers the emergency fallback to the fast tier rather than a
// routine escalation.
var ErrQuotaExhausted = errors.New("tier quota exhausted")

// Result is the outcome of a smart-routed extraction.
type Result struct {
	Pages           []string
	TierUsed        string
	TiersAttempted  []string
	QualityScore    float64
	QualityReport   quality.Report
	Cost            float64
	ExtractionTime  time.Duration
	TotalTime       time.Duration
	Success         bool
	Error           string
}

// TierConfig names which tiers are enabled and their cost-per-page.
type TierConfig struct {
	Enabled bool
	Cost    float64
}

// Options configures a Processor's tier set and default target
// quality.
type Options struct {
	Fast          TierConfig
	Balanced      TierConfig
	Premium       TierConfig
	TargetQuality float64
}

// DefaultOptions enables the fast tier only; balanced/premium require
// an explicit extractor and API credentials to be meaningful, so
// callers opt in by supplying Options with those tiers enabled.
func DefaultOptions() Options {
	return Options{
		Fast:          TierConfig{Enabled: true, Cost: CostFast},
		Balanced:      TierConfig{Enabled: false, Cost: CostBalanced},
		Premium:       TierConfig{Enabled: false, Cost: CostPremium},
		TargetQuality: ThresholdFast,
	}
}

// Processor orchestrates tiered extraction.
type Processor struct {
	opts      Options
	extractor map[string]TierExtractor
	checker   *quality.Checker
	logger    *zap.Logger
}

// NewProcessor creates a Processor. extractors maps tier name to the
// TierExtractor that serves it; a missing or nil entry disables that
// tier regardless of Options.
func NewProcessor(opts Options, extractors map[string]TierExtractor, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		opts:      opts,
		extractor: extractors,
		checker:   quality.NewChecker(),
		logger:    logger,
	}
}

func (p *Processor) tierOrder(startTier string) []string {
	all := []struct {
		name    string
		enabled bool
	}{
		{TierFast, p.opts.Fast.Enabled},
		{TierBalanced, p.opts.Balanced.Enabled},
		{TierPremium, p.opts.Premium.Enabled},
	}

	started := startTier == "" || startTier == TierFast
	var order []string
	for _, t := range all {
		if t.name == startTier {
			started = true
		}
		if started && t.enabled && p.extractor[t.name] != nil {
			order = append(order, t.name)
		}
	}
	return order
}

func (p *Processor) costFor(tier string) float64 {
	switch tier {
	case TierFast:
		return p.opts.Fast.Cost
	case TierBalanced:
		return p.opts.Balanced.Cost
	case TierPremium:
		return p.opts.Premium.Cost
	default:
		return 0
	}
}

type tierOutcome struct {
	pages   []string
	report  quality.Report
	tier    string
	elapsed time.Duration
	cost    float64
}

// ExtractWithSmartRouting runs the tier-escalation algorithm against
// source, stopping as soon as targetQuality is met or the tier list is
// exhausted.
func (p *Processor) ExtractWithSmartRouting(ctx context.Context, source []byte, targetQuality float64, startTier string, autoRetry bool) Result {
	start := time.Now()
	if targetQuality <= 0 {
		targetQuality = p.opts.TargetQuality
	}
	if startTier == "" {
		startTier = TierFast
	}

	tiers := p.tierOrder(startTier)

	var best *tierOutcome
	var tiersAttempted []string
	var totalCost float64

	for i, tier := range tiers {
		tiersAttempted = append(tiersAttempted, tier)

		outcome, err := p.extractTier(ctx, tier, source)
		if err != nil {
			p.logger.Error("tier failed", zap.String("tier", tier), zap.Error(err))

			if errors.Is(err, ErrQuotaExhausted) && tier != TierFast && p.extractor[TierFast] != nil {
				p.logger.Info("emergency fallback to fast tier")
				if fallback, fbErr := p.extractTier(ctx, TierFast, source); fbErr == nil {
					tiersAttempted = append(tiersAttempted, TierFast)
					if best == nil || fallback.report.OverallScore > best.report.OverallScore {
						best = fallback
					}
				}
				break
			}

			if !autoRetry {
				break
			}
			continue
		}

		totalCost += outcome.cost

		if best == nil || outcome.report.OverallScore > best.report.OverallScore {
			best = outcome
		}

		if outcome.report.OverallScore >= targetQuality {
			break
		}
		if !autoRetry || i == len(tiers)-1 {
			break
		}
	}

	totalTime := time.Since(start)

	if best == nil {
		return Result{
			TierUsed:       startTier,
			TiersAttempted: tiersAttempted,
			QualityReport:  p.checker.CheckQuality(nil),
			Cost:           totalCost,
			TotalTime:      totalTime,
			Success:        false,
			Error:          "all tiers failed",
		}
	}

	return Result{
		Pages:          best.pages,
		TierUsed:       best.tier,
		TiersAttempted: tiersAttempted,
		QualityScore:   best.report.OverallScore,
		QualityReport:  best.report,
		Cost:           totalCost,
		ExtractionTime: best.elapsed,
		TotalTime:      totalTime,
		Success:        true,
	}
}

func (p *Processor) extractTier(ctx context.Context, tier string, source []byte) (*tierOutcome, error) {
	extractor := p.extractor[tier]
	if extractor == nil {
		return nil, errors.New("no extractor configured for tier " + tier)
	}

	start := time.Now()
	pages, err := extractor.Extract(ctx, source)
	if err != nil {
		if isQuotaError(err) {
			return nil, ErrQuotaExhausted
		}
		return nil, err
	}
	elapsed := time.Since(start)

	report := p.checker.CheckQuality(pages)
	cost := float64(len(pages)) * p.costFor(tier)

	return &tierOutcome{
		pages:   pages,
		report:  report,
		tier:    tier,
		elapsed: elapsed,
		cost:    cost,
	}, nil
}

func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

package usecase

// ExitReason explains why a sell was forced to a full liquidation.
type ExitReason string

const (
	ExitTargetExhausted ExitReason = "target balance already empty"
	ExitNearTotal       ExitReason = "near-total exit"
	ExitFinalRound      ExitReason = "final round"
	ExitRoundOverrun    ExitReason = "round overrun"
)

// ExitDecision is the outcome of evaluating one observed target-wallet sell.
type ExitDecision struct {
	Forced bool
	Reason ExitReason
	Ratio  float64 // fraction of the local position to sell; 1.0 when forced
}

// ExitConfig carries the empirically chosen thresholds. They are tuning
// knobs, not invariants; keep them in configuration.
type ExitConfig struct {
	// NearTotalRatio: a target sell above this fraction of its holding is
	// treated as a full exit (default 0.90).
	NearTotalRatio float64
	// TinySellRatio: at or below the final round, a sell under this fraction
	// is a "test the water" trade and is mirrored without forcing a close
	// (default 0.05).
	TinySellRatio float64
}

// ExitEngine decides how much of the local position to liquidate when the
// target wallet sells. Pure ratio mirroring drifts over many rounds (rounding,
// partial fills) and never fully exits, so two circuit breakers override it:
// a near-total sell forces a close outright, and round accounting forces a
// close once the target has sold at least as many times as it bought and at
// least one earlier sell round has completed.
type ExitEngine struct {
	cfg ExitConfig
}

func NewExitEngine(cfg ExitConfig) *ExitEngine {
	return &ExitEngine{cfg: cfg}
}

// Decide computes the liquidation for one observed sell. soldAmount and
// targetRemaining are the target wallet's sold amount and post-sell balance in
// raw units; buyCount and sellCount are the cumulative counters for the mint
// before this sell.
func (e *ExitEngine) Decide(soldAmount, targetRemaining uint64, buyCount, sellCount int) ExitDecision {
	totalBefore := soldAmount + targetRemaining
	if totalBefore == 0 {
		// The balance was gone before we even looked: a sell was missed.
		return ExitDecision{Forced: true, Reason: ExitTargetExhausted, Ratio: 1}
	}

	ratio := float64(soldAmount) / float64(totalBefore)
	if ratio > e.cfg.NearTotalRatio {
		return ExitDecision{Forced: true, Reason: ExitNearTotal, Ratio: 1}
	}

	sellSeq := sellCount + 1 // this would be the Nth sell against buyCount buys
	if buyCount > 0 {
		switch {
		case sellSeq >= buyCount && sellCount >= 1 && ratio >= e.cfg.TinySellRatio:
			// Round accounting needs a completed sell round before it can
			// call this one final: the first sell always mirrors.
			return ExitDecision{Forced: true, Reason: ExitFinalRound, Ratio: 1}
		case sellSeq >= buyCount+2:
			// Catch-all for rounds skipped by the tiny-sell exemption.
			// Known hole: sells too small to execute never increment the
			// sell counter, so a long run of them can starve this catch.
			return ExitDecision{Forced: true, Reason: ExitRoundOverrun, Ratio: 1}
		}
		// sellSeq >= buyCount with a tiny ratio: the target is testing the
		// water; mirror the ratio but keep the position open.
	}

	return ExitDecision{Ratio: ratio}
}

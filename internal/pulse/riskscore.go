package pulse

import "time"

// RiskScore rates a token snapshot from 1 (established) to 10 (likely
// rug). The heuristic starts neutral at 5 and shifts on holder count,
// liquidity depth, trading volume, and token age. Metrics absent from
// the feed contribute nothing; a reported zero counts against the
// token, so Holders/Liquidity/Volume24h carry presence via pointers.
func RiskScore(snapshot TokenSnapshot, now time.Time) float64 {
	score := 5.0

	if snapshot.Holders != nil {
		switch {
		case *snapshot.Holders < 50:
			score += 3
		case *snapshot.Holders < 200:
			score += 1
		case *snapshot.Holders > 1000:
			score -= 2
		}
	}

	if snapshot.Liquidity != nil {
		switch {
		case *snapshot.Liquidity < 1_000:
			score += 3
		case *snapshot.Liquidity < 10_000:
			score += 1
		case *snapshot.Liquidity > 100_000:
			score -= 2
		}
	}

	if snapshot.Volume24h != nil {
		switch {
		case *snapshot.Volume24h < 100:
			score += 2
		case *snapshot.Volume24h > 10_000:
			score -= 1
		}
	}

	// Unknown creation time counts as brand new.
	var ageHours float64
	if !snapshot.CreatedAt.IsZero() {
		ageHours = now.Sub(snapshot.CreatedAt).Hours()
	}
	switch {
	case ageHours < 1:
		score += 2
	case ageHours < 24:
		score += 1
	case ageHours > 168:
		score -= 1
	}

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

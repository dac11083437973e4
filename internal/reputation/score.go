package reputation

// ratingWeight converts a 1-5 star rating into a signed base delta.
// 3 stars is neutral; each star above or below moves the score by 2 points
// before quality scaling.
const ratingWeight = 2.0

// bookingBump is the trust gain for one completed booking.
const bookingBump = 0.5

// ReviewDelta calculates the trust score change for one processed review.
//
// Formula: delta = (rating - 3) x ratingWeight x qualityScore, then dampened
// by the integrity of the review itself: a sentiment-mismatched review moves
// the score at half weight, a suspected-manipulated or bombing review at a
// quarter. A low-integrity review should barely move the target's trust at
// all.
func ReviewDelta(rating int, qualityScore float64, flags []Flag) float64 {
	delta := float64(rating-3) * ratingWeight * qualityScore

	damp := 1.0
	for _, f := range flags {
		switch f {
		case FlagSentimentMismatch:
			if damp > 0.5 {
				damp = 0.5
			}
		case FlagReviewBombing, FlagManipulationSuspected:
			damp = 0.25
		}
	}
	return delta * damp
}

// ApplyDelta returns the new trust score after a delta, clamped to bounds.
func ApplyDelta(current, delta float64) float64 {
	return clamp(current + delta)
}

// BookingCompleted returns the new trust score after a completed booking.
func BookingCompleted(current float64) float64 {
	return clamp(current + bookingBump)
}

// RunningAverage folds one more rating into a running average over count
// previous ratings.
func RunningAverage(current float64, count int, rating int) float64 {
	if count <= 0 {
		return float64(rating)
	}
	return (current*float64(count) + float64(rating)) / float64(count+1)
}

func clamp(score float64) float64 {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

package trace

import "math"

// TraceSummary aggregates statistics from a RoundTrace.
type TraceSummary struct {
	Rounds           int
	TotalPoints      int
	PaddingPoints    int
	TotalRequests    int
	Deliveries       int
	SharedDeliveries int         // deliveries of points generated by another slot
	PerConsumer      map[int]int // slot index → observations delivered
	BestValue        float64     // lowest delivered value; +Inf when nothing was delivered
}

// Summarize computes aggregate statistics from a RoundTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RoundTrace) *TraceSummary {
	summary := &TraceSummary{
		PerConsumer: make(map[int]int),
		BestValue:   math.Inf(1),
	}
	if rt == nil {
		return summary
	}

	rounds := make(map[int]bool)
	for _, r := range rt.Requests {
		rounds[r.Round] = true
		summary.TotalPoints++
		summary.TotalRequests += r.Requests
		if r.Padding {
			summary.PaddingPoints++
		}
	}
	for _, d := range rt.Deliveries {
		rounds[d.Round] = true
		summary.Deliveries++
		summary.PerConsumer[d.Consumer]++
		if d.Generator != d.Consumer {
			summary.SharedDeliveries++
		}
		if d.Value < summary.BestValue {
			summary.BestValue = d.Value
		}
	}
	summary.Rounds = len(rounds)
	return summary
}

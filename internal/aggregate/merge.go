// Package aggregate implements the metrics aggregator (C6): a
// write-buffered rolling aggregation of post-analysis events into
// time-bucketed agent performance series.
package aggregate

// MergeAvg implements Invariant A2: merging two partial running averages
// (avg1,n1) and (avg2,n2) yields (avg1*n1 + avg2*n2)/(n1+n2), with
// null-safe behavior — a nil avg with n=0 merges as the identity.
func MergeAvg(avg1 *float64, n1 int, avg2 *float64, n2 int) (*float64, int) {
	if n1 == 0 {
		return avg2, n2
	}
	if n2 == 0 {
		return avg1, n1
	}
	merged := (*avg1*float64(n1) + *avg2*float64(n2)) / float64(n1+n2)
	return &merged, n1 + n2
}

// Observation is one metric reading extracted from a post-analysis event.
type Observation struct {
	Quality            *float64
	Sentiment          *float64
	Satisfaction       *float64
	CompliancePassRate *float64
	ChurnRisk          *float64
}

// Bucket folds a list of observations into a local {count, avg...} struct,
// the flush-time local aggregation step before the merge into the durable
// row. Each metric tracks its own sample count (NQuality, NSentiment, ...)
// rather than sharing Count: quality/compliance only come from audit
// events, sentiment only from sentiment events, satisfaction/churn only
// from voc events, and a bucket normally mixes all three event types, so
// using one shared count as every metric's merge weight would average
// each metric against the wrong denominator.
type Bucket struct {
	Count                 int
	AvgQuality            *float64
	NQuality              int
	AvgSentiment          *float64
	NSentiment            int
	AvgSatisfaction       *float64
	NSatisfaction         int
	AvgCompliancePassRate *float64
	NCompliancePassRate   int
	AvgChurnRisk          *float64
	NChurnRisk            int
}

// Fold locally aggregates a batch of observations into one Bucket.
func Fold(obs []Observation) Bucket {
	var b Bucket
	var sumQ, sumSe, sumSa, sumCp, sumCh float64
	var nQ, nSe, nSa, nCp, nCh int

	for _, o := range obs {
		if o.Quality != nil {
			sumQ += *o.Quality
			nQ++
		}
		if o.Sentiment != nil {
			sumSe += *o.Sentiment
			nSe++
		}
		if o.Satisfaction != nil {
			sumSa += *o.Satisfaction
			nSa++
		}
		if o.CompliancePassRate != nil {
			sumCp += *o.CompliancePassRate
			nCp++
		}
		if o.ChurnRisk != nil {
			sumCh += *o.ChurnRisk
			nCh++
		}
	}

	b.Count = len(obs)
	b.AvgQuality, b.NQuality = avgOrNil(sumQ, nQ), nQ
	b.AvgSentiment, b.NSentiment = avgOrNil(sumSe, nSe), nSe
	b.AvgSatisfaction, b.NSatisfaction = avgOrNil(sumSa, nSa), nSa
	b.AvgCompliancePassRate, b.NCompliancePassRate = avgOrNil(sumCp, nCp), nCp
	b.AvgChurnRisk, b.NChurnRisk = avgOrNil(sumCh, nCh), nCh
	return b
}

func avgOrNil(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

package ranker

import "fmt"

// QueryLemma describes one distinct lemma of a query.
type QueryLemma struct {
	Lemma string
	// Count is how many query words resolved to Lemma; Total is the number of
	// resolved words in the whole query.
	Count  int
	Total  int
	Common bool
	IDF    float64
}

// TF is Count / Total.
func (q QueryLemma) TF() float64 {
	if q.Total == 0 {
		return 0
	}
	return float64(q.Count) / float64(q.Total)
}

// Weighting assigns a query-vector weight to a lemma.
type Weighting interface {
	Weigh(q QueryLemma) float64
	Name() string
}

// CommonLemmaWeighting gives lemmas found in every document their query
// term frequency and every other lemma a flat weight of 1.
type CommonLemmaWeighting struct{}

func (CommonLemmaWeighting) Weigh(q QueryLemma) float64 {
	if q.Common {
		return q.TF()
	}
	return 1
}

func (CommonLemmaWeighting) Name() string { return "common" }

// IDFWeighting scales every non-common lemma by its idf. Common lemmas have
// idf 0, so they keep the plain term-frequency weight.
type IDFWeighting struct{}

func (IDFWeighting) Weigh(q QueryLemma) float64 {
	if q.Common {
		return q.TF()
	}
	return q.TF() * q.IDF
}

func (IDFWeighting) Name() string { return "idf" }

// WeightingByName resolves the config value search.weighting.
func WeightingByName(name string) (Weighting, error) {
	switch name {
	case "", "common":
		return CommonLemmaWeighting{}, nil
	case "idf":
		return IDFWeighting{}, nil
	default:
		return nil, fmt.Errorf("unknown weighting %q", name)
	}
}

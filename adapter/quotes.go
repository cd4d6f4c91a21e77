package adapter

import (
	"context"
	"sync"
	"time"
)

// Quote is one supplier's offer for an item. Providers may return nil when
// they cannot quote the item at all.
type Quote struct {
	Provider    string
	Price       float64
	LeadTime    time.Duration
	Reliability float64 // 0..1
}

// QuoteProvider is a single supplier endpoint queried during fan-out.
type QuoteProvider interface {
	Name() string
	Quote(ctx context.Context, sku string) (*Quote, error)
}

// QuoteSet aggregates the results of a quote fan-out.
type QuoteSet struct {
	All          []Quote
	BestPrice    *Quote
	Fastest      *Quote
	MostReliable *Quote
	// Recommended balances price, lead time and reliability into a single
	// overall pick.
	Recommended *Quote
}

// GatherQuotes queries every provider in parallel and aggregates the
// non-nil answers. Provider errors and nil quotes are simply skipped; a
// fan-out with zero usable quotes returns an empty set.
func GatherQuotes(ctx context.Context, sku string, providers []QuoteProvider) QuoteSet {
	results := make([]*Quote, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p QuoteProvider) {
			defer wg.Done()
			q, err := p.Quote(ctx, sku)
			if err != nil || q == nil {
				return
			}
			if q.Provider == "" {
				q.Provider = p.Name()
			}
			results[i] = q
		}(i, p)
	}
	wg.Wait()

	var set QuoteSet
	for _, q := range results {
		if q != nil {
			set.All = append(set.All, *q)
		}
	}
	if len(set.All) == 0 {
		return set
	}

	for i := range set.All {
		q := &set.All[i]
		if set.BestPrice == nil || q.Price < set.BestPrice.Price {
			set.BestPrice = q
		}
		if set.Fastest == nil || q.LeadTime < set.Fastest.LeadTime {
			set.Fastest = q
		}
		if set.MostReliable == nil || q.Reliability > set.MostReliable.Reliability {
			set.MostReliable = q
		}
		if set.Recommended == nil || overallScore(q, set.All) > overallScore(set.Recommended, set.All) {
			set.Recommended = q
		}
	}
	return set
}

// overallScore normalizes each dimension against the field and weights
// price highest, then reliability, then lead time.
func overallScore(q *Quote, field []Quote) float64 {
	maxPrice, maxLead := 0.0, time.Duration(0)
	for _, other := range field {
		if other.Price > maxPrice {
			maxPrice = other.Price
		}
		if other.LeadTime > maxLead {
			maxLead = other.LeadTime
		}
	}
	score := 0.0
	if maxPrice > 0 {
		score += 0.5 * (1 - q.Price/maxPrice)
	}
	if maxLead > 0 {
		score += 0.2 * (1 - float64(q.LeadTime)/float64(maxLead))
	}
	score += 0.3 * q.Reliability
	return score
}

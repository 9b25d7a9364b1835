package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/ordered"
)

// NeighborhoodRollup is the finalized per-neighborhood summary.
type NeighborhoodRollup struct {
	Name              string  `json:"name"`
	Total             int     `json:"total"`
	Closed            int     `json:"closed"`
	AvgResolutionDays float64 `json:"avgResolutionDays"`
	TopCategories     Counts  `json:"topCategories"`
}

// Neighborhoods maps rank ids ("01", "02", ...) to rollups, ordered by id.
type Neighborhoods = ordered.Map[NeighborhoodRollup]

type neighborhoodAccumulator struct {
	name           string
	total          int
	closed         int
	resolutionDays []int
	categories     *Counter
}

// neighborhoodSet accumulates rollups keyed by neighborhood name in
// encounter order.
type neighborhoodSet struct {
	byName map[string]*neighborhoodAccumulator
	order  []*neighborhoodAccumulator
	topN   int
}

func newNeighborhoodSet(topN int) *neighborhoodSet {
	return &neighborhoodSet{byName: make(map[string]*neighborhoodAccumulator), topN: topN}
}

func (s *neighborhoodSet) observe(ev domain.NormalizedEvent) {
	if ev.Neighborhood == "" {
		return
	}
	acc, ok := s.byName[ev.Neighborhood]
	if !ok {
		acc = &neighborhoodAccumulator{name: ev.Neighborhood, categories: NewCounter()}
		s.byName[ev.Neighborhood] = acc
		s.order = append(s.order, acc)
	}
	acc.total++
	acc.categories.Add(ev.Category)
	if ev.Closed() {
		acc.closed++
	}
	if ev.ResolutionDays != nil {
		acc.resolutionDays = append(acc.resolutionDays, *ev.ResolutionDays)
	}
}

// finalize ranks neighborhoods by descending total, ties in encounter order,
// and assigns zero-padded two-digit ids starting at "01".
func (s *neighborhoodSet) finalize() Neighborhoods {
	ranked := make([]*neighborhoodAccumulator, len(s.order))
	copy(ranked, s.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].total > ranked[j].total
	})

	out := make(Neighborhoods, len(ranked))
	for i, acc := range ranked {
		out[i] = ordered.Entry[NeighborhoodRollup]{
			Key: fmt.Sprintf("%02d", i+1),
			Value: NeighborhoodRollup{
				Name:              acc.name,
				Total:             acc.total,
				Closed:            acc.closed,
				AvgResolutionDays: averageDays(acc.resolutionDays),
				TopCategories:     acc.categories.MostCommon(s.topN),
			},
		}
	}
	return out
}

// averageDays is the mean rounded to one decimal, or exactly 0 without samples.
func averageDays(days []int) float64 {
	if len(days) == 0 {
		return 0
	}
	sum := 0
	for _, d := range days {
		sum += d
	}
	return math.Round(float64(sum)/float64(len(days))*10) / 10
}

package aggregate

import (
	"sort"
	"strconv"

	"github.com/couchcryptid/civic-data-etl/internal/ordered"
)

// Counts is a finalized frequency map in output order.
type Counts = ordered.Map[int]

// Counter counts string keys and remembers the order each key was first
// seen, which breaks ties when ranking by frequency.
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add increments key by one.
func (c *Counter) Add(key string) {
	c.AddN(key, 1)
}

// AddN increments key by n.
func (c *Counter) AddN(key string, n int) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// Count returns the current count for key.
func (c *Counter) Count(key string) int {
	return c.counts[key]
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.order)
}

// Total returns the sum of all counts.
func (c *Counter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// MostCommon returns the n most frequent keys by descending count, ties in
// first-seen order. n <= 0 returns every key.
func (c *Counter) MostCommon(n int) Counts {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return c.entries(keys)
}

// ByKey returns every key in ascending lexical order.
func (c *Counter) ByKey() Counts {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.Strings(keys)
	return c.entries(keys)
}

func (c *Counter) entries(keys []string) Counts {
	out := make(Counts, len(keys))
	for i, k := range keys {
		out[i] = ordered.Entry[int]{Key: k, Value: c.counts[k]}
	}
	return out
}

// slotCounter counts small non-negative integer keys such as hour of day or
// weekday number.
type slotCounter struct {
	slots []int
	seen  []bool
}

func newSlotCounter(size int) *slotCounter {
	return &slotCounter{slots: make([]int, size), seen: make([]bool, size)}
}

func (s *slotCounter) add(slot int) {
	if slot < 0 || slot >= len(s.slots) {
		return
	}
	s.slots[slot]++
	s.seen[slot] = true
}

// finalize emits observed slots in ascending numeric order keyed by their
// decimal string.
func (s *slotCounter) finalize() Counts {
	out := Counts{}
	for i, n := range s.slots {
		if s.seen[i] {
			out = append(out, ordered.Entry[int]{Key: strconv.Itoa(i), Value: n})
		}
	}
	return out
}

package optionchain

import (
	"sort"
	"time"
)

type ResolveOutcome int

const (
	RESOLVE_ACCEPTED ResolveOutcome = iota
	RESOLVE_DISCARDED
	RESOLVE_REPLACED
)

func (o ResolveOutcome) String() string {
	switch o {
	case RESOLVE_ACCEPTED:
		return "accepted"
	case RESOLVE_DISCARDED:
		return "discarded"
	case RESOLVE_REPLACED:
		return "replaced"
	}
	return "unknown"
}

type rootGroup struct {
	root   Root
	quotes []*Quote
}

// RootResolver keeps one root family per expiration of a day. Quotes must be
// offered in file order; the result depends on that order.
type RootResolver struct {
	rank      map[Root]int
	groups    map[time.Time]*rootGroup
	discarded int
	purged    int
}

func NewRootResolver(priority []string) *RootResolver {
	r := &RootResolver{
		rank:   make(map[Root]int, len(priority)),
		groups: map[time.Time]*rootGroup{},
	}
	for i, root := range priority {
		r.rank[normalizeRoot(root)] = i
	}
	return r
}

// priority is lower for the preferred root. Unknown roots rank last.
func (r *RootResolver) priority(root Root) int {
	if p, ok := r.rank[root]; ok {
		return p
	}
	return len(r.rank)
}

func (r *RootResolver) Offer(q *Quote) ResolveOutcome {
	g, ok := r.groups[q.Expiration]
	if !ok {
		r.groups[q.Expiration] = &rootGroup{root: q.Root, quotes: []*Quote{q}}
		return RESOLVE_ACCEPTED
	}
	if q.Root == g.root {
		g.quotes = append(g.quotes, q)
		return RESOLVE_ACCEPTED
	}
	winner := r.priority(g.root)
	if winner == 0 || r.priority(q.Root) > winner {
		r.discarded++
		return RESOLVE_DISCARDED
	}
	r.purged += len(g.quotes)
	g.root = q.Root
	g.quotes = []*Quote{q}
	return RESOLVE_REPLACED
}

// Root returns the root currently holding the expiration.
func (r *RootResolver) Root(expiration time.Time) (Root, bool) {
	g, ok := r.groups[expiration]
	if !ok {
		return "", false
	}
	return g.root, true
}

// Accepted returns the surviving quotes by expiration, file order within each.
func (r *RootResolver) Accepted() []*Quote {
	expirations := make([]time.Time, 0, len(r.groups))
	total := 0
	for exp, g := range r.groups {
		expirations = append(expirations, exp)
		total += len(g.quotes)
	}
	sort.Slice(expirations, func(i, j int) bool {
		return expirations[i].Before(expirations[j])
	})
	out := make([]*Quote, 0, total)
	for _, exp := range expirations {
		out = append(out, r.groups[exp].quotes...)
	}
	return out
}

// Dropped is the number of quotes the resolver threw away, either on arrival
// or when their group was purged.
func (r *RootResolver) Dropped() int {
	return r.discarded + r.purged
}

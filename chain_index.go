package optionchain

import (
	"fmt"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

type GroupKey struct {
	QuoteTime  time.Time
	Expiration time.Time
	Kind       OptionKind
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.QuoteTime.Format(quoteTimeLayout), k.Expiration.Format(dayLayout), k.Kind)
}

func compareGroupKey(a, b interface{}) int {
	ka, kb := a.(GroupKey), b.(GroupKey)
	if c := ka.QuoteTime.Compare(kb.QuoteTime); c != 0 {
		return c
	}
	if c := ka.Expiration.Compare(kb.Expiration); c != 0 {
		return c
	}
	return utils.StringComparator(string(ka.Kind), string(kb.Kind))
}

// ChainGroup holds the quotes of one quote time, expiration and kind twice:
// once by strike and once by scaled delta. Both trees always hold the same
// quotes.
type ChainGroup struct {
	Key     GroupKey
	Strikes *rbt.Tree
	Deltas  *rbt.Tree
}

func newChainGroup(key GroupKey) *ChainGroup {
	return &ChainGroup{
		Key:     key,
		Strikes: rbt.NewWith(utils.IntComparator),
		Deltas:  rbt.NewWith(utils.IntComparator),
	}
}

// InsertQuote adds q to both indices and returns the scaled delta it was
// stored under. A colliding delta is pushed away from at-the-money (down for
// puts, up for calls) until it is free; q.DeltaScaled is updated to match.
func (g *ChainGroup) InsertQuote(q *Quote) (int, error) {
	if _, found := g.Strikes.Get(q.Strike); found {
		return 0, fmt.Errorf("%w: strike %d at %s", ErrorDuplicateStrike, q.Strike, g.Key)
	}
	key, err := g.freeDelta(q.DeltaScaled, q.Kind.nudge())
	if err != nil {
		return 0, fmt.Errorf("%w: strike %d at %s", err, q.Strike, g.Key)
	}
	q.DeltaScaled = key
	g.Strikes.Put(q.Strike, q)
	g.Deltas.Put(key, q)
	return key, nil
}

// freeDelta walks from key in step until an unused key is found. The walk
// turns around at ±DeltaScale, which only sentinel keys can reach.
func (g *ChainGroup) freeDelta(key, step int) (int, error) {
	if key < MinDeltaScaled {
		key = MinDeltaScaled
	} else if key > MaxDeltaScaled {
		key = MaxDeltaScaled
	}
	for tries := 0; tries <= 2*(MaxDeltaScaled-MinDeltaScaled+1); tries++ {
		if _, used := g.Deltas.Get(key); !used {
			return key, nil
		}
		next := key + step
		if next < MinDeltaScaled || next > MaxDeltaScaled {
			step = -step
			next = key + step
		}
		key = next
	}
	return 0, ErrorDeltaSpaceFull
}

func (g *ChainGroup) Len() int {
	return g.Strikes.Size()
}

func (g *ChainGroup) QuoteAtStrike(strike int) (*Quote, bool) {
	v, found := g.Strikes.Get(strike)
	if !found {
		return nil, false
	}
	return v.(*Quote), true
}

func (g *ChainGroup) QuoteAtDelta(deltaScaled int) (*Quote, bool) {
	v, found := g.Deltas.Get(deltaScaled)
	if !found {
		return nil, false
	}
	return v.(*Quote), true
}

// NearestDelta returns the quote whose scaled delta is closest to target,
// preferring the one further from zero on a tie.
func (g *ChainGroup) NearestDelta(target int) (*Quote, bool) {
	floor, hasFloor := g.Deltas.Floor(target)
	ceiling, hasCeiling := g.Deltas.Ceiling(target)
	switch {
	case !hasFloor && !hasCeiling:
		return nil, false
	case !hasFloor:
		return ceiling.Value.(*Quote), true
	case !hasCeiling:
		return floor.Value.(*Quote), true
	}
	below, above := target-floor.Key.(int), ceiling.Key.(int)-target
	if below < above || (below == above && target < 0) {
		return floor.Value.(*Quote), true
	}
	return ceiling.Value.(*Quote), true
}

// ByStrike returns the quotes in ascending strike order.
func (g *ChainGroup) ByStrike() []*Quote {
	return treeQuotes(g.Strikes)
}

// ByDelta returns the quotes in ascending scaled delta order.
func (g *ChainGroup) ByDelta() []*Quote {
	return treeQuotes(g.Deltas)
}

func treeQuotes(tree *rbt.Tree) []*Quote {
	out := make([]*Quote, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Quote))
	}
	return out
}

// DayChain is the normalized chain of one trading day. It is owned by a
// single day task and is not safe for concurrent use.
type DayChain struct {
	Day    time.Time
	groups *treemap.Map
	size   int
}

func NewDayChain(day time.Time) *DayChain {
	return &DayChain{
		Day:    truncateDay(day),
		groups: treemap.NewWith(compareGroupKey),
	}
}

// Insert places q in its group, creating the group on first use, and returns
// the scaled delta it was stored under.
func (c *DayChain) Insert(q *Quote) (int, error) {
	key := q.GroupKey()
	var g *ChainGroup
	if v, found := c.groups.Get(key); found {
		g = v.(*ChainGroup)
	} else {
		g = newChainGroup(key)
		c.groups.Put(key, g)
	}
	assigned, err := g.InsertQuote(q)
	if err != nil {
		if g.Len() == 0 {
			c.groups.Remove(key)
		}
		return 0, err
	}
	c.size++
	return assigned, nil
}

func (c *DayChain) Group(key GroupKey) (*ChainGroup, bool) {
	v, found := c.groups.Get(key)
	if !found {
		return nil, false
	}
	return v.(*ChainGroup), true
}

// Groups returns the groups by quote time, then expiration, then kind.
func (c *DayChain) Groups() []*ChainGroup {
	out := make([]*ChainGroup, 0, c.groups.Size())
	it := c.groups.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*ChainGroup))
	}
	return out
}

func (c *DayChain) Len() int {
	return c.size
}

// Quotes returns every indexed quote, group by group in strike order.
func (c *DayChain) Quotes() []*Quote {
	out := make([]*Quote, 0, c.size)
	for _, g := range c.Groups() {
		out = append(out, g.ByStrike()...)
	}
	return out
}

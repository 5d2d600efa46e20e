package optionchain

import (
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type MySyncMap[K any, V any] struct {
	smap sync.Map
}

func NewMySyncMap[K any, V any]() MySyncMap[K, V] {
	return MySyncMap[K, V]{
		smap: sync.Map{},
	}
}
func (m *MySyncMap[K, V]) Load(k K) (V, bool) {
	v, ok := m.smap.Load(k)

	if ok {
		return v.(V), true
	}
	var resv V
	return resv, false
}
func (m *MySyncMap[K, V]) Store(k K, v V) {
	m.smap.Store(k, v)
}

func (m *MySyncMap[K, V]) Range(f func(k K, v V) bool) {
	m.smap.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}

func (m *MySyncMap[K, V]) Length() int {
	length := 0
	m.Range(func(k K, v V) bool {
		length += 1
		return true
	})
	return length
}

func parseFloatField(str string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(str), 64)
}

func parseDecimalField(str string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(str))
}

// scaleDelta converts a delta to its integer index key, truncating toward
// zero. Going through the shortest decimal form keeps -0.3 at -3000 instead
// of the -2999 a float product can land on.
func scaleDelta(delta float64) int {
	return int(decimal.NewFromFloat(delta).Shift(4).Truncate(0).IntPart())
}

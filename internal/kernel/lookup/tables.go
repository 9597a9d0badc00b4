package lookup

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RangeInfo is the packed per-mask range summary: whether the mask is a
// singleton or a wipeout, and its fixed/min/max value. Kept as a
// small struct rather than a manually bit-packed integer — Go's struct
// layout already gives single-word, branchless field access, and nothing
// downstream needs the raw packed bits.
type RangeInfo struct {
	IsFixed    bool // singleton: exactly one candidate remains
	IsEmpty    bool // wipeout: zero candidates remain
	FixedValue int  // the value, when IsFixed
	Min        int  // lowest remaining candidate (0 if empty)
	Max        int  // highest remaining candidate (0 if empty)
}

// Tables holds every precomputed, memoized table for a fixed domain size.
// Immutable once built; safe to share across every handler instance that
// solves a puzzle with that many values.
type Tables struct {
	NumValues int

	sumOf     []uint16    // sum[m] = sum of represented values
	reverseOf []Mask      // reverse[m]: value v <-> numValues+1-v
	rangeOf   []RangeInfo // rangeInfo[m]
	doublesOf []uint32    // doubles[m]: bitset (bit s set) of sums 2v for v in m

	pairwiseOnce sync.Once
	pairwise     []uint64 // only built for NumValues<=9; indexed (a<<n)|b, bitset of sums
}

var (
	tablesMu    sync.Mutex
	tablesCache = map[int]*Tables{}
)

// For returns the process-wide, lazily-initialized table set for numValues.
// LookupTables are immutable and read-only once built, so sharing a
// single instance across concurrent solver constructions is safe.
func For(numValues int) *Tables {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	if t, ok := tablesCache[numValues]; ok {
		return t
	}
	t := build(numValues)
	tablesCache[numValues] = t
	return t
}

func build(numValues int) *Tables {
	size := 1 << uint(numValues)
	t := &Tables{
		NumValues: numValues,
		sumOf:     make([]uint16, size),
		reverseOf: make([]Mask, size),
		rangeOf:   make([]RangeInfo, size),
		doublesOf: make([]uint32, size),
	}

	for m := 0; m < size; m++ {
		mask := Mask(m)
		var sum uint16
		var rev Mask
		var doubles uint32
		info := RangeInfo{Min: 1 << 30}

		for _, v := range mask.ToSlice() {
			sum += uint16(v)
			rev = rev.With(numValues + 1 - v)
			if 2*v < 32 {
				doubles |= 1 << uint(2*v)
			}
			if v < info.Min {
				info.Min = v
			}
			if v > info.Max {
				info.Max = v
			}
		}

		t.sumOf[m] = sum
		t.reverseOf[m] = rev
		t.doublesOf[m] = doubles

		if mask.IsEmpty() {
			info.IsEmpty = true
			info.Min, info.Max = 0, 0
		} else if fv, ok := mask.Singleton(); ok {
			info.IsFixed = true
			info.FixedValue = fv
		}
		t.rangeOf[m] = info
	}

	return t
}

// Sum returns the sum of the values represented by m.
func (t *Tables) Sum(m Mask) int {
	return int(t.sumOf[m])
}

// Reverse returns the mask obtained by mapping every value v to numValues+1-v.
func (t *Tables) Reverse(m Mask) Mask {
	return t.reverseOf[m]
}

// Range returns the packed range summary for m.
func (t *Tables) Range(m Mask) RangeInfo {
	return t.rangeOf[m]
}

// Doubles returns the set of sums {2v : v in m}, as a bitset indexed by sum.
func (t *Tables) Doubles(m Mask) uint32 {
	return t.doublesOf[m]
}

// ensurePairwise lazily builds the full (a,b)->sum-bitset table for small
// domains (n <= 9). Larger domains fall back to direct
// enumeration in PairwiseSums, which stays correct but skips the O(4^n)
// precomputation that would otherwise dominate memory for n up to 16.
func (t *Tables) ensurePairwise() {
	t.pairwiseOnce.Do(func() {
		if t.NumValues > 9 {
			return
		}
		n := t.NumValues
		size := 1 << uint(n)
		table := make([]uint64, size*size)
		for a := 0; a < size; a++ {
			for b := 0; b < size; b++ {
				table[(a<<uint(n))|b] = sumBitset(Mask(a), Mask(b))
			}
		}
		t.pairwise = table
	})
}

// sumBitset computes, directly, the bitset of sums x+y with x in a, y in b,
// equal values included (whether two cells may share a value is left to
// the caller's exclusion semantics; this is the raw sum set).
func sumBitset(a, b Mask) uint64 {
	var out uint64
	for _, x := range a.ToSlice() {
		for _, y := range b.ToSlice() {
			out |= 1 << uint(x+y)
		}
	}
	return out
}

// PairwiseSums returns the bitset (bit s set iff sum s is achievable) of
// x+y for x a candidate of cell a, y a candidate of cell b.
func (t *Tables) PairwiseSums(a, b Mask) uint64 {
	if t.NumValues <= 9 {
		t.ensurePairwise()
		n := t.NumValues
		return t.pairwise[(int(a)<<uint(n))|int(b)]
	}
	return sumBitset(a, b)
}

// binaryTables holds the forward/backward propagation tables for one
// compiled binary relation.
type binaryTables struct {
	forward  []Mask // forward[1<<i] = mask of all j with P(i+1,j+1); extended multiplicatively for composite masks
	backward []Mask
}

// binaryCache is the process-wide, thread-safe memoization table for
// ForBinaryKey. Bounded so a
// long-lived server that compiles many distinct relation keys (arbitrary
// DFA transitions, user-supplied relations) doesn't grow without bound.
var binaryCache = newBinaryCacheLRU(256)

type binaryCacheLRU struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *binaryTables]
}

func newBinaryCacheLRU(size int) *binaryCacheLRU {
	c, err := lru.New[string, *binaryTables](size)
	if err != nil {
		// size is a compile-time constant > 0; this cannot fail.
		panic(err)
	}
	return &binaryCacheLRU{cache: c}
}

// ForBinaryKey returns the (forward, backward) tables for the binary
// predicate compiled into key, building and memoizing them on first use.
// key should come from EncodeRelationKey so that identical predicates
// always hash to the same cache entry.
func (t *Tables) ForBinaryKey(key string, pred func(a, b int) bool) (forward, backward []Mask) {
	cacheKey := relationCacheKey(t.NumValues, key)

	binaryCache.mu.Lock()
	if bt, ok := binaryCache.cache.Get(cacheKey); ok {
		binaryCache.mu.Unlock()
		return bt.forward, bt.backward
	}
	binaryCache.mu.Unlock()

	bt := t.compileBinary(pred)

	binaryCache.mu.Lock()
	binaryCache.cache.Add(cacheKey, bt)
	binaryCache.mu.Unlock()

	return bt.forward, bt.backward
}

func relationCacheKey(numValues int, key string) string {
	return string(rune('0'+numValues)) + ":" + key
}

// compileBinary builds forward[m] and backward[m] for every mask m using the
// identity forward[m] = forward[m & (m-1)] | forward[m & -m] — composite
// masks reduce to the OR of their constituent singleton bits.
func (t *Tables) compileBinary(pred func(a, b int) bool) *binaryTables {
	n := t.NumValues
	size := 1 << uint(n)
	forward := make([]Mask, size)
	backward := make([]Mask, size)

	for i := 1; i <= n; i++ {
		var fwd, bwd Mask
		for j := 1; j <= n; j++ {
			if pred(i, j) {
				fwd = fwd.With(j)
			}
			if pred(j, i) {
				bwd = bwd.With(j)
			}
		}
		forward[Bit(i)] = fwd
		backward[Bit(i)] = bwd
	}

	for m := 1; m < size; m++ {
		if Mask(m).Count() <= 1 {
			continue
		}
		lowBit := m & (-m)
		rest := m &^ lowBit
		forward[m] = forward[rest] | forward[lowBit]
		backward[m] = backward[rest] | backward[lowBit]
	}

	return &binaryTables{forward: forward, backward: backward}
}

package index

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"go.etcd.io/bbolt"
)

// Op is a tag predicate's comparison operator.
type Op int

const (
	// OpEqual matches an exact "tag=value" pair.
	OpEqual Op = iota
	// OpNotEqual matches any value the tag carries except the given one.
	OpNotEqual
	// OpMatch matches Value as a pattern (see ParseOp) against the tag.
	OpMatch
	// OpNotMatch is the complement of OpMatch within the values the tag
	// is known to carry.
	OpNotMatch
)

// Matcher is one tag predicate in a Query, e.g. "host=alpha",
// "dc!=prod", "name=~!bo*".
type Matcher struct {
	Tag   string
	Op    Op
	Value string
}

// matchPattern reports whether value satisfies an OpMatch/OpNotMatch
// pattern, mirroring metrics.py's pattern_match: a leading "!" switches to
// glob semantics (fnmatch-style, matched as a prefix/leading match, not a
// full match); an explicit ":a,b,c" value is a literal set; anything else
// is a raw regex.
func matchPattern(pattern, value string) bool {
	switch {
	case strings.HasPrefix(pattern, ":"):
		for _, v := range strings.Split(pattern[1:], ",") {
			if v == value {
				return true
			}
		}
		return false
	case strings.HasPrefix(pattern, "!"):
		g, err := glob.Compile(pattern[1:] + "*")
		if err != nil {
			return false
		}
		return g.Match(value)
	default:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}
}

// candidateNameIDs resolves one matcher to the sorted set of nameIDs that
// satisfy it. Grounded on _match_by_tags's TagIdCursor/MultyTagIdCursor:
// OpEqual/OpNotEqual need exactly one interned tagID's posting list (or
// the union of all-but-one when negated); OpMatch/OpNotMatch enumerate
// every interned value for the tag first, to know which tagIDs their
// posting lists should be unioned from.
func (idx *Index) candidateNameIDs(tx *bbolt.Tx, m Matcher) []uint32 {
	switch m.Op {
	case OpEqual:
		tagID, ok := idx.lookupTagID(tx, m.Tag, m.Value)
		if !ok {
			return nil
		}
		return idx.nameIDsForTagID(tx, tagID)

	case OpNotEqual:
		values := idx.valuesForTag(tx, m.Tag)
		var union []uint32
		for value, tagID := range values {
			if value == m.Value {
				continue
			}
			union = append(union, idx.nameIDsForTagID(tx, tagID)...)
		}
		return dedupSorted(union)

	case OpMatch:
		values := idx.valuesForTag(tx, m.Tag)
		var union []uint32
		for value, tagID := range values {
			if matchPattern(m.Value, value) {
				union = append(union, idx.nameIDsForTagID(tx, tagID)...)
			}
		}
		return dedupSorted(union)

	case OpNotMatch:
		values := idx.valuesForTag(tx, m.Tag)
		var union []uint32
		for value, tagID := range values {
			if !matchPattern(m.Value, value) {
				union = append(union, idx.nameIDsForTagID(tx, tagID)...)
			}
		}
		return dedupSorted(union)
	}
	return nil
}

func (idx *Index) lookupTagID(tx *bbolt.Tx, tag, value string) (uint32, bool) {
	v := tx.Bucket(bucketTagValueToID).Get(tagValueKey(tag, value))
	if v == nil {
		return 0, false
	}
	return parseU32(v), true
}

func dedupSorted(ids []uint32) []uint32 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last uint32
	first := true
	for _, id := range ids {
		if first || id != last {
			out = append(out, id)
			last = id
			first = false
		}
	}
	return out
}

// intersect performs the min-cursor merge _match_by_tags uses: walk every
// predicate's sorted candidate list in lockstep, advancing whichever
// lags, and emit a nameID only when every predicate agrees on it.
func intersect(sets [][]uint32) []uint32 {
	if len(sets) == 0 {
		return nil
	}
	for _, s := range sets {
		if len(s) == 0 {
			return nil
		}
	}
	idxs := make([]int, len(sets))
	var result []uint32
	for {
		max := sets[0][idxs[0]]
		for i := 1; i < len(sets); i++ {
			if sets[i][idxs[i]] > max {
				max = sets[i][idxs[i]]
			}
		}
		allMatch := true
		for i, s := range sets {
			for idxs[i] < len(s) && s[idxs[i]] < max {
				idxs[i]++
			}
			if idxs[i] >= len(s) {
				return result
			}
			if s[idxs[i]] != max {
				allMatch = false
			}
		}
		if allMatch {
			result = append(result, max)
			for i := range sets {
				idxs[i]++
				if idxs[i] >= len(sets[i]) {
					return result
				}
			}
		}
	}
}

// Query resolves matchers (ANDed together) to the set of matching metric
// names, the Go analog of MetricIndex.find.
func (idx *Index) Query(matchers []Matcher) ([]string, error) {
	if len(matchers) == 0 {
		return nil, nil
	}
	var names []string
	err := idx.db.View(func(tx *bbolt.Tx) error {
		sets := make([][]uint32, len(matchers))
		for i, m := range matchers {
			sets[i] = idx.candidateNameIDs(tx, m)
		}
		ids := intersect(sets)
		names = make([]string, 0, len(ids))
		b := tx.Bucket(bucketNameIDToName)
		for _, id := range ids {
			if v := b.Get(u32(id)); v != nil {
				names = append(names, string(v))
			}
		}
		return nil
	})
	return names, err
}

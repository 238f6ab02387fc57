package index

import (
	"strconv"
	"strings"
)

// TagPair is one interned (tag, value) association a metric name carries.
type TagPair struct {
	Tag   string
	Value string
}

// SplitName decomposes a metric name into its synthetic tag pairs, ported
// from original_source/hisser/metrics.py's split_names:
//
//   - a name containing ';' is tag-bearing: "name;k=v;k2=v2" becomes
//     name=<"name"> plus one pair per literal "k=v" segment.
//   - a plain dotted name "a.b.c" becomes one positional pair per segment,
//     ".0"="a", ".1"="b", ".2"="c" — no "name" tag — so a dotted
//     wildcard query can match on path position, and tag-count alone
//     distinguishes a dotted name's pairs from a tag-bearing one's.
func SplitName(name string) []TagPair {
	if semi := strings.IndexByte(name, ';'); semi >= 0 {
		base := name[:semi]
		pairs := []TagPair{{Tag: "name", Value: base}}
		for _, seg := range strings.Split(name[semi+1:], ";") {
			if seg == "" {
				continue
			}
			if eq := strings.IndexByte(seg, '='); eq >= 0 {
				pairs = append(pairs, TagPair{Tag: seg[:eq], Value: seg[eq+1:]})
			}
		}
		return pairs
	}

	segments := strings.Split(name, ".")
	pairs := make([]TagPair, 0, len(segments))
	for i, seg := range segments {
		pairs = append(pairs, TagPair{Tag: "." + strconv.Itoa(i), Value: seg})
	}
	return pairs
}

package index

import (
	"fmt"
	"strconv"
	"strings"

	"go.etcd.io/bbolt"
)

// TreeEntry is one result of FindTree: a name at the query's depth plus
// whether it's a leaf (the indexed name ends exactly there) or a branch
// (the indexed name has further segments below it).
type TreeEntry struct {
	Name   string
	IsLeaf bool
}

// segmentMatchers decomposes a dotted Graphite-style query ("a.*.c")
// into one per-position matcher against the synthetic ".N" tags
// SplitName assigns: a segment carrying a glob metacharacter becomes an
// OpMatch("!pattern"), anything else an exact OpEqual. Mirrors
// find_metrics's query.split('.') / '*' in part translation.
func segmentMatchers(query string) []Matcher {
	segs := strings.Split(query, ".")
	out := make([]Matcher, len(segs))
	for i, seg := range segs {
		tag := "." + strconv.Itoa(i)
		if strings.ContainsAny(seg, "*?[") {
			out[i] = Matcher{Tag: tag, Op: OpMatch, Value: "!" + seg}
		} else {
			out[i] = Matcher{Tag: tag, Op: OpEqual, Value: seg}
		}
	}
	return out
}

// FindTree resolves a dotted query to its branch/leaf entries at the
// query's depth — the Go analog of MetricIndex.find_tree, a non-exact
// FindMetrics.
func (idx *Index) FindTree(query string) ([]TreeEntry, error) {
	return idx.FindMetrics(query, false)
}

// FindMetrics resolves a dotted Graphite-style query to the metric names
// it matches, decomposing it into per-position ".N" tag predicates
// (segmentMatchers) and intersecting their posting lists exactly like a
// tag Query. exact distinguishes the two callers' needs: true (a leaf
// lookup) returns only metrics whose indexed name ends exactly at the
// query's depth; false (a tree listing) returns one entry per distinct
// prefix at that depth, whose IsLeaf reflects only the highest matching
// nameID sharing that prefix (true if that name ends there). Ported from
// metrics.py's find_metrics/find_tree.
func (idx *Index) FindMetrics(query string, exact bool) ([]TreeEntry, error) {
	matchers := segmentMatchers(query)
	elen := len(matchers) * 4

	var entries []TreeEntry
	err := idx.db.View(func(tx *bbolt.Tx) error {
		sets := make([][]uint32, len(matchers))
		for i, m := range matchers {
			sets[i] = idx.candidateNameIDs(tx, m)
		}
		ids := intersect(sets)
		if len(ids) == 0 {
			return nil
		}

		nameTags := tx.Bucket(bucketNameIDTagIDs)

		if exact {
			nameNames := tx.Bucket(bucketNameIDToName)
			for _, id := range ids {
				tagData := nameTags.Get(u32(id))
				if len(tagData) != elen {
					continue
				}
				if v := nameNames.Get(u32(id)); v != nil {
					entries = append(entries, TreeEntry{Name: string(v), IsLeaf: true})
				}
			}
			return nil
		}

		// Dedup by the shared tagID prefix at this depth; a later nameID
		// sharing a prefix overrides an earlier one's IsLeaf verdict,
		// matching find_metrics's plain-dict is_root bookkeeping.
		isLeaf := make(map[string]bool)
		var order []string
		for _, id := range ids {
			tagData := nameTags.Get(u32(id))
			if len(tagData) < elen {
				continue
			}
			key := string(tagData[:elen])
			if _, ok := isLeaf[key]; !ok {
				order = append(order, key)
			}
			isLeaf[key] = len(tagData) == elen
		}
		for _, key := range order {
			name, err := idx.decodeTagIDs(tx, []byte(key))
			if err != nil {
				return err
			}
			entries = append(entries, TreeEntry{Name: name, IsLeaf: isLeaf[key]})
		}
		return nil
	})
	return entries, err
}

// decodeTagIDs joins the values for a run of concatenated tagIDs with
// ".", reconstructing a dotted branch name from a name's positional tag
// prefix. Mirrors decode_name, but stops at however many tagIDs tagData
// holds rather than requiring a full name's worth.
func (idx *Index) decodeTagIDs(tx *bbolt.Tx, tagData []byte) (string, error) {
	b := tx.Bucket(bucketIDToTagValue)
	segs := make([]string, 0, len(tagData)/4)
	for i := 0; i+4 <= len(tagData); i += 4 {
		tagID := parseU32(tagData[i : i+4])
		v := b.Get(u32(tagID))
		if v == nil {
			return "", fmt.Errorf("index: unknown tagID %d", tagID)
		}
		_, value := splitTagValueKey(v)
		segs = append(segs, value)
	}
	return strings.Join(segs, "."), nil
}

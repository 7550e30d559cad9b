// Package query looks identifiers up across the six index collections,
// by exact name and by fuzzy similarity for did-you-mean suggestions.
package query

import (
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/gmtooling/gmscope/internal/types"
)

const (
	// DefaultThreshold is the minimum Jaro-Winkler similarity for a
	// fuzzy suggestion.
	DefaultThreshold = 0.82

	// DefaultLimit caps how many suggestions a lookup returns.
	DefaultLimit = 5
)

// Match is one identifier hit. Similarity is 1 for exact name matches
// and the Jaro-Winkler score for suggestions.
type Match struct {
	Entry      *types.IdentifierEntry
	Collection string
	Similarity float64
}

// Options tunes fuzzy suggestion behavior. Zero values select the
// defaults.
type Options struct {
	Threshold float64
	Limit     int
}

// Lookup returns every entry whose name matches exactly, across all six
// collections, in stable ID order.
func Lookup(idx *types.ProjectIndex, name string) []Match {
	var out []Match
	for _, entry := range allEntries(idx) {
		if entry.Name != name {
			continue
		}
		out = append(out, Match{
			Entry:      entry,
			Collection: entry.Category.String(),
			Similarity: 1,
		})
	}
	return out
}

// Suggest returns near-miss entries ranked by similarity to name.
// Exact matches are excluded; Lookup already covers them.
func Suggest(idx *types.ProjectIndex, name string, opts Options) []Match {
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []Match
	for _, entry := range allEntries(idx) {
		if entry.Name == name {
			continue
		}
		score, err := edlib.StringsSimilarity(name, entry.Name, edlib.JaroWinkler)
		if err != nil || float64(score) < threshold {
			continue
		}
		out = append(out, Match{
			Entry:      entry,
			Collection: entry.Category.String(),
			Similarity: float64(score),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].Entry.Name != out[j].Entry.Name {
			return out[i].Entry.Name < out[j].Entry.Name
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// allEntries flattens the six collections into stable ID order so
// results do not depend on map iteration.
func allEntries(idx *types.ProjectIndex) []*types.IdentifierEntry {
	var entries []*types.IdentifierEntry
	for _, e := range idx.Identifiers.Scripts {
		entries = append(entries, e)
	}
	for _, e := range idx.Identifiers.Macros {
		entries = append(entries, e)
	}
	for _, e := range idx.Identifiers.Enums {
		entries = append(entries, e)
	}
	for _, e := range idx.Identifiers.EnumMembers {
		entries = append(entries, e)
	}
	for _, e := range idx.Identifiers.GlobalVariables {
		entries = append(entries, e)
	}
	for _, e := range idx.Identifiers.InstanceVariables {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries
}

package metrics

import (
	"sort"

	"github.com/gmtooling/gmscope/internal/types"
)

// CallTally is one callee with its resolved call count.
type CallTally struct {
	Name  string `json:"name"`
	Calls int    `json:"calls"`
}

// ProjectStats are aggregate views derived from a built index. Unlike
// Summary, which records how a build went, these describe what the project
// contains and are recomputed from the index on demand.
type ProjectStats struct {
	ResourceTypeCounts map[string]int `json:"resourceTypeCounts"`

	ScriptCount      int `json:"scriptCount"`
	OrphanFileScopes int `json:"orphanFileScopes"`

	CallCount       int `json:"callCount"`
	UnresolvedCalls int `json:"unresolvedCalls"`

	// MostCalled lists the top callees by resolved call count.
	MostCalled []CallTally `json:"mostCalled"`

	// UnreferencedScripts are script names nothing in the project calls
	// or mentions, candidates for dead code.
	UnreferencedScripts []string `json:"unreferencedScripts"`
}

// MostCalledLimit caps the MostCalled list.
const MostCalledLimit = 10

// ComputeProjectStats derives aggregate statistics from an index.
func ComputeProjectStats(idx *types.ProjectIndex) *ProjectStats {
	stats := &ProjectStats{
		ResourceTypeCounts: make(map[string]int),
		ScriptCount:        len(idx.Identifiers.Scripts),
		CallCount:          len(idx.Relationships.Calls),
	}

	for _, res := range idx.Resources {
		stats.ResourceTypeCounts[res.Type.String()]++
	}

	for _, scope := range idx.Scopes {
		if scope.Kind == types.ScopeKindFile {
			stats.OrphanFileScopes++
		}
	}

	tallies := make(map[string]int)
	for _, call := range idx.Relationships.Calls {
		if !call.IsResolved {
			stats.UnresolvedCalls++
			continue
		}
		tallies[call.Callee]++
	}
	stats.MostCalled = topCallees(tallies, MostCalledLimit)

	for _, entry := range idx.Identifiers.Scripts {
		if len(entry.References) == 0 {
			stats.UnreferencedScripts = append(stats.UnreferencedScripts, entry.Name)
		}
	}
	sort.Strings(stats.UnreferencedScripts)

	return stats
}

// topCallees sorts tallies by count descending, name ascending on ties, and
// keeps the first limit entries.
func topCallees(tallies map[string]int, limit int) []CallTally {
	out := make([]CallTally, 0, len(tallies))
	for name, calls := range tallies {
		out = append(out, CallTally{Name: name, Calls: calls})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

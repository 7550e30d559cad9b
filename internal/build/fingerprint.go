// Package build turns a project tree into a ProjectIndex. The pipeline is
// scan, manifest analysis, a bounded worker pool running per-file source
// analysis, and a sequential reduce that folds worker results in sorted
// file order, so the output is deterministic regardless of interleaving.
// The Coordinator on top deduplicates concurrent builds per project root
// and brokers the cache.
package build

import (
	stderrors "errors"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	"github.com/gmtooling/gmscope/internal/debug"
	"github.com/gmtooling/gmscope/internal/metrics"
	"github.com/gmtooling/gmscope/internal/scan"
)

// Fingerprints pairs a scan result with the float-millisecond mtime maps
// the cache store compares. Both maps are keyed by relative path.
type Fingerprints struct {
	Scan           *scan.Result
	ManifestMtimes map[string]float64
	SourceMtimes   map[string]float64

	ScanMillis float64
}

// Fingerprint scans the project and stats every discovered file. A file
// that vanishes between scan and stat is dropped from both the map and the
// scan result, keeping the cache key and the analysis input in agreement.
func Fingerprint(fsys afero.Fs, scanner *scan.Scanner, root string) (*Fingerprints, error) {
	start := time.Now()

	result, err := scanner.Scan(root)
	if err != nil {
		return nil, err
	}

	fp := &Fingerprints{Scan: result}
	if result.Manifests, fp.ManifestMtimes, err = statAll(fsys, result.Manifests); err != nil {
		return nil, err
	}
	if result.Sources, fp.SourceMtimes, err = statAll(fsys, result.Sources); err != nil {
		return nil, err
	}

	fp.ScanMillis = metrics.Millis(time.Since(start))
	debug.LogScan("fingerprinted %d manifests, %d sources under %s\n", len(result.Manifests), len(result.Sources), root)
	return fp, nil
}

func statAll(fsys afero.Fs, entries []scan.FileEntry) ([]scan.FileEntry, map[string]float64, error) {
	kept := make([]scan.FileEntry, 0, len(entries))
	mtimes := make(map[string]float64, len(entries))

	for _, entry := range entries {
		info, err := fsys.Stat(entry.AbsPath)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, nil, err
		}
		mtimes[entry.RelPath] = mtimeMillis(info.ModTime())
		kept = append(kept, entry)
	}
	return kept, mtimes, nil
}

// mtimeMillis is the fingerprint form of a timestamp. Only reproducibility
// matters here: the same mtime always converts to the same float.
func mtimeMillis(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e6
}

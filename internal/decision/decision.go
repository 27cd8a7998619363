// Package decision implements the Re-index Decision Engine (C5): a
// pure function deciding whether a file must be (re)processed, with
// no I/O of its own. It is grounded on the hash/parser-version
// comparison inside the teacher's index coordinator, generalized to
// a five-rule reindex contract.
package decision

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/jbovet/docwell/internal/docmodel"
)

// RetryBackoff is how long a failed/errored file is left alone before
// it becomes eligible for another attempt.
const RetryBackoff = 24 * time.Hour

// ShouldReindex decides whether path must be (re)processed.
// currentVersion is the registry's current ParserVersion for the
// file's extension; hasParser is false if the extension is
// unsupported. record is nil if no FileStatus exists yet. hash is the
// file's freshly computed FileHash.
func ShouldReindex(hasParser bool, currentVersion int, record *docmodel.FileStatus, hash string, now time.Time) bool {
	if !hasParser {
		return false
	}
	if record == nil {
		return true
	}
	if hash != record.FileHash {
		return true
	}
	if record.ParserVer < currentVersion {
		return true
	}
	if record.Status == docmodel.StatusFailed || record.Status == docmodel.StatusError {
		if record.LastRetry == nil || now.Sub(*record.LastRetry) > RetryBackoff {
			return true
		}
	}
	return false
}

// Upgrade is one record flagged outdated by SweepForUpgrades, paired
// with the extension's new current version.
type Upgrade struct {
	Path       string
	NewVersion int
}

// SweepForUpgrades scans every known record and flags those whose
// parser_version lags the current version for their extension. It
// returns the paths that must be re-queued, and mutates the matching
// records' Status to outdated in place (callers persist the result).
func SweepForUpgrades(records []*docmodel.FileStatus, currentVersions map[string]int) []Upgrade {
	var upgrades []Upgrade
	for _, r := range records {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(r.Path)), ".")
		cur, ok := currentVersions[ext]
		if !ok {
			continue
		}
		if r.ParserVer < cur && r.Status == docmodel.StatusIndexed {
			r.Status = docmodel.StatusOutdated
			upgrades = append(upgrades, Upgrade{Path: r.Path, NewVersion: cur})
		}
	}
	return upgrades
}

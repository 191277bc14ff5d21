// Kelvin's KEYS and SCAN MATCH commands filter the primary index's keyspace
// against a glob pattern; this module implements that matching.

package scan

import (
	"iter"

	"github.com/kelvindb/kelvin/pkg/utils"
	"v.io/v23/glob"
)

// MatchGlob matches the `pairs` stream with the given `glob` pattern.
func MatchGlob(pattern []byte, pairs iter.Seq[utils.BytePair]) iter.Seq[utils.BytePair] {
	// Parse the glob pattern.
	parsedPattern, err := glob.Parse(string(pattern))
	if err != nil { // If pattern is invalid, return empty sequence.
		return func(yield func(utils.BytePair) bool) {}
	}
	return func(yield func(utils.BytePair) bool) {
		for pair := range pairs {
			if parsedPattern.Head().Match(string(pair.Key)) {
				if !yield(pair) {
					return
				}
			}
		}
	}
}

// MatchKeys matches a plain stream of keys (no associated values) against
// pattern, for callers that only need the keyspace membership test (e.g.
// KEYS, SCAN).
func MatchKeys(pattern []byte, keys iter.Seq[[]byte]) iter.Seq[[]byte] {
	pairs := func(yield func(utils.BytePair) bool) {
		for k := range keys {
			if !yield(utils.BytePair{Key: k}) {
				return
			}
		}
	}
	matched := MatchGlob(pattern, pairs)
	return func(yield func([]byte) bool) {
		for pair := range matched {
			if !yield(pair.Key) {
				return
			}
		}
	}
}

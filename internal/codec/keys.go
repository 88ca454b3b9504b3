// Package codec builds canonical KV-store keys and encodes/decodes the
// model types to the compact binary wire format used for cached and
// broadcast payloads. Key formats are bit-exact and part of the public
// REST contract (clients scan against these patterns) — never change
// one without treating it as a breaking change.
package codec

import (
	"fmt"

	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

// RawBossKey is the per-language raw boss descriptor key.
func RawBossKey(lang model.Language, level int32, bossName string) string {
	return fmt.Sprintf("gbf:%s:%d.%s", lang, level, bossName)
}

// PairedBossKey is the canonical bilingual boss record key, written once
// per language-specific name (en_name and jp_name both get an entry).
func PairedBossKey(level int32, name string) string {
	return fmt.Sprintf("gbf:boss:%d.%s", level, name)
}

// BossCatalogPattern is the scan pattern for /get_bosses. level=0 means
// "all levels" and expands to a fully wildcarded pattern.
func BossCatalogPattern(level uint32) string {
	if level == 0 {
		return "gbf:boss:*.*"
	}
	return fmt.Sprintf("gbf:boss:%d.*", level)
}

// PossibleMatchPattern is the scan pattern the translator worker lists to
// find same-level candidates in the opposite language.
func PossibleMatchPattern(lang model.Language, level int32) string {
	return fmt.Sprintf("gbf:%s:%d.*", lang, level)
}

// PersistenceKey is the invitation persistence key.
func PersistenceKey(bossName string, tweetID uint64, created uint64) string {
	return fmt.Sprintf("gbf:persistence:%s.%d.%d", bossName, tweetID, created)
}

// PersistencePattern is the scan pattern for a boss's recent invitations.
func PersistencePattern(bossName string) string {
	return fmt.Sprintf("gbf:persistence:%s.*", bossName)
}

// TranslatorKey is a single direction of the bidirectional translator
// mirror kept in the KV store.
func TranslatorKey(name string) string {
	return fmt.Sprintf("gbf:translator:%s", name)
}

// TranslatorScanPattern lists every mirrored translator entry, used to
// repopulate the in-memory TranslatorMap at startup.
func TranslatorScanPattern() string {
	return "gbf:translator:*"
}

const (
	// RawBossTTLSeconds is the 30-day TTL for raw and paired boss records.
	RawBossTTLSeconds = 30 * 24 * 60 * 60
	// PersistenceTTLSeconds is the 2-hour TTL for invitation persistence.
	PersistenceTTLSeconds = 2 * 60 * 60
)

package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sydlexius/tributary/internal/dto"
)

// Key kinds.
const (
	KindID        = "id"
	KindComposite = "composite"
)

// Key identifies a release across local and remote state. Two releases with
// equal keys are the same release.
type Key struct {
	Kind     string
	Source   string
	SourceID string
	Title    string
	Date     string
	Type     string
}

func (k Key) String() string {
	if k.Kind == KindID {
		return fmt.Sprintf("id:%s:%s", k.Source, k.SourceID)
	}
	return fmt.Sprintf("composite:%s:%s:%s:%s", k.Source, k.Title, k.Date, k.Type)
}

// IdentityKey derives a key from release fields. With a source id the key is
// (source, source id); otherwise it is composed of the normalized title,
// date and type. ok is false when neither form can be built.
func IdentityKey(source, sourceID, title, date, releaseType string) (Key, bool) {
	source = norm(source)
	if id := strings.TrimSpace(sourceID); id != "" {
		return Key{Kind: KindID, Source: source, SourceID: id}, true
	}
	t := norm(title)
	if source == "" || t == "" {
		return Key{}, false
	}
	return Key{
		Kind:   KindComposite,
		Source: source,
		Title:  t,
		Date:   NormalizeDate(date),
		Type:   norm(releaseType),
	}, true
}

// ReleaseKey is the identity key of a remote release.
func ReleaseKey(r dto.ProviderRelease) (Key, bool) {
	return IdentityKey(r.Source, r.SourceID, r.Title, r.ReleaseDate, r.Type)
}

// SnapshotKey is the identity key of a stored release.
func SnapshotKey(s ReleaseSnapshot) (Key, bool) {
	return IdentityKey(s.Source, s.SourceID, s.Title, s.ReleaseDate, s.ReleaseType)
}

// Fingerprint captures the comparable content of a release. Matched
// releases whose fingerprints differ are updates.
type Fingerprint struct {
	Title        string
	Date         string
	Type         string
	TotalTracks  int
	HasTotal     bool
	MetadataHash string
}

// ReleaseFingerprint fingerprints a remote release.
func ReleaseFingerprint(r dto.ProviderRelease) Fingerprint {
	return fingerprint(r.Title, r.ReleaseDate, r.Type, r.TotalTracks, r.Metadata)
}

// SnapshotFingerprint fingerprints a stored release.
func SnapshotFingerprint(s ReleaseSnapshot) Fingerprint {
	return fingerprint(s.Title, s.ReleaseDate, s.ReleaseType, s.TotalTracks, s.Metadata)
}

func fingerprint(title, date, releaseType string, total *int, meta map[string]any) Fingerprint {
	fp := Fingerprint{
		Title:        norm(title),
		Date:         NormalizeDate(date),
		Type:         norm(releaseType),
		MetadataHash: MetadataHash(meta),
	}
	if total != nil {
		fp.TotalTracks, fp.HasTotal = *total, true
	}
	return fp
}

// MetadataHash is the hex SHA-256 of the metadata's canonical JSON form
// (object keys sorted). Nil and empty maps hash alike, and so do numbers
// that only differ in Go type.
func MetadataHash(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	b, err := json.Marshal(meta)
	if err != nil {
		// fmt prints maps with sorted keys.
		b = []byte(fmt.Sprintf("%v", meta))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// norm lower-cases, trims and collapses inner whitespace.
func norm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var dateLayouts = []struct {
	parse, format string
}{
	{"2006-01-02", "2006-01-02"},
	{"2006-01", "2006-01"},
	{"2006", "2006"},
	{time.RFC3339, "2006-01-02"},
	{time.RFC3339Nano, "2006-01-02"},
	{"2006-01-02T15:04:05", "2006-01-02"},
	{"2006-01-02 15:04:05", "2006-01-02"},
}

// NormalizeDate reduces a release date to YYYY, YYYY-MM or YYYY-MM-DD
// depending on its precision. Timestamps keep only their date. Anything
// unparseable is returned normalized but otherwise untouched.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.parse, s); err == nil {
			return t.Format(l.format)
		}
	}
	return norm(s)
}

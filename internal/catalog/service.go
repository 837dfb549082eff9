// Package catalog persists reconciled artists, releases and aliases in
// SQLite.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/tributary/internal/delta"
	"github.com/sydlexius/tributary/internal/dto"
)

// releaseColumns is the ordered list of columns for release SELECT queries.
const releaseColumns = `id, artist_key, source, source_id, title, release_date, release_type,
	total_tracks, version, metadata, etag, updated_at, inactive_at, inactive_reason`

// Service provides catalog data operations.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates a catalog service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// GetArtist returns the stored artist for key, or nil if none is stored.
func (s *Service) GetArtist(ctx context.Context, key string) (*dto.ProviderArtist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT source, source_id, name, genres, images, popularity, metadata
		FROM artists WHERE artist_key = ?`, key)

	var (
		a              dto.ProviderArtist
		genres, images string
		meta           string
		popularity     sql.NullInt64
	)
	err := row.Scan(&a.Source, &a.SourceID, &a.Name, &genres, &images, &popularity, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist %s: %w", key, err)
	}
	a.Genres = unmarshalStrings(genres)
	a.Images = unmarshalStrings(images)
	a.Metadata = unmarshalMap(meta)
	if popularity.Valid {
		a.Popularity = dto.Int(int(popularity.Int64))
	}
	aliases, err := s.ListAliases(ctx, key)
	if err != nil {
		return nil, err
	}
	a.Aliases = aliases
	return &a, nil
}

// UpsertArtist stores the artist record for key, replacing any previous one.
// Aliases are managed separately.
func (s *Service) UpsertArtist(ctx context.Context, key string, a dto.ProviderArtist) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("artist key is required")
	}
	now := s.now().Format(time.RFC3339)
	var popularity any
	if a.Popularity != nil {
		popularity = *a.Popularity
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (id, artist_key, source, source_id, name, genres, images, popularity, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(artist_key) DO UPDATE SET
			source = excluded.source,
			source_id = excluded.source_id,
			name = excluded.name,
			genres = excluded.genres,
			images = excluded.images,
			popularity = excluded.popularity,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`,
		uuid.New().String(), key, a.Source, a.SourceID, a.Name,
		marshalStrings(a.Genres), marshalStrings(a.Images), popularity, marshalMap(a.Metadata),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting artist %s: %w", key, err)
	}
	return nil
}

// GetArtistReleases returns the stored releases for key ordered by ID.
// Inactive releases are included only when includeInactive is set.
func (s *Service) GetArtistReleases(ctx context.Context, key string, includeInactive bool) ([]delta.ReleaseSnapshot, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE artist_key = ?`
	if !includeInactive {
		query += ` AND inactive_at IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []delta.ReleaseSnapshot
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning release row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating release rows: %w", err)
	}
	return out, nil
}

// UpsertReleases writes releases for key. Each release replaces the stored
// release with the same identity key (reactivating it if it was inactive);
// releases without a stored match are inserted. It returns the IDs written,
// in input order.
func (s *Service) UpsertReleases(ctx context.Context, key string, releases []dto.ProviderRelease) ([]string, error) {
	if len(releases) == 0 {
		return nil, nil
	}
	existing, err := s.GetArtistReleases(ctx, key, true)
	if err != nil {
		return nil, err
	}
	byKey := make(map[delta.Key][]delta.ReleaseSnapshot)
	for _, r := range existing {
		if k, ok := delta.SnapshotKey(r); ok {
			byKey[k] = append(byKey[k], r)
		}
	}
	for k := range byKey {
		slices.SortStableFunc(byKey[k], delta.CompareSnapshots)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now().Format(time.RFC3339)
	ids := make([]string, 0, len(releases))
	for _, r := range releases {
		k, ok := delta.ReleaseKey(r)
		if !ok {
			return nil, fmt.Errorf("release %q has no identity", r.Title)
		}
		var totalTracks any
		if r.TotalTracks != nil {
			totalTracks = *r.TotalTracks
		}
		etag := releaseETag(r)

		if bucket := byKey[k]; len(bucket) > 0 {
			id := bucket[0].ID
			byKey[k] = bucket[1:]
			_, err := tx.ExecContext(ctx, `
				UPDATE releases SET
					source = ?, source_id = ?, title = ?, release_date = ?, release_type = ?,
					total_tracks = ?, version = ?, edition_tags = ?, metadata = ?, etag = ?,
					updated_at = ?, inactive_at = NULL, inactive_reason = ''
				WHERE id = ?`,
				r.Source, r.SourceID, r.Title, r.ReleaseDate, r.Type,
				totalTracks, r.Version, marshalStrings(r.EditionTags), marshalMap(r.Metadata), etag,
				now, id,
			)
			if err != nil {
				return nil, fmt.Errorf("updating release %s: %w", id, err)
			}
			ids = append(ids, id)
			continue
		}

		id := uuid.New().String()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO releases (
				id, artist_key, source, source_id, title, release_date, release_type,
				total_tracks, version, edition_tags, metadata, etag, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, key, r.Source, r.SourceID, r.Title, r.ReleaseDate, r.Type,
			totalTracks, r.Version, marshalStrings(r.EditionTags), marshalMap(r.Metadata), etag,
			now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting release %q: %w", r.Title, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing releases: %w", err)
	}
	return ids, nil
}

// MarkReleasesInactive flags releases as inactive with the given reason, or
// deletes them outright when hardDelete is set. It returns the number of
// rows affected.
func (s *Service) MarkReleasesInactive(ctx context.Context, ids []string, reason string, hardDelete bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)

	var query string
	if hardDelete {
		query = `DELETE FROM releases WHERE id IN (` + placeholders + `)` //nolint:gosec // G202: placeholders only
	} else {
		now := s.now().Format(time.RFC3339)
		query = `UPDATE releases SET inactive_at = ?, inactive_reason = ?, updated_at = ? WHERE id IN (` + placeholders + `)` //nolint:gosec // G202: placeholders only
		args = append(args, now, reason, now)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking releases inactive: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListAliases returns the aliases stored for key in insertion order.
func (s *Service) ListAliases(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias FROM artist_aliases WHERE artist_key = ? ORDER BY created_at, rowid`, key)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aliases: %w", err)
	}
	return out, nil
}

// AddAliases stores aliases for key. Aliases already stored under any
// casing are skipped.
func (s *Service) AddAliases(ctx context.Context, key string, aliases []string) error {
	now := s.now().Format(time.RFC3339)
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO artist_aliases (id, artist_key, alias, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			uuid.New().String(), key, a, now)
		if err != nil {
			return fmt.Errorf("inserting alias %q: %w", a, err)
		}
	}
	return nil
}

// RemoveAliases deletes aliases for key, matching case-insensitively.
func (s *Service) RemoveAliases(ctx context.Context, key string, aliases []string) error {
	for _, a := range aliases {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM artist_aliases WHERE artist_key = ? AND alias = ? COLLATE NOCASE`, key, strings.TrimSpace(a))
		if err != nil {
			return fmt.Errorf("deleting alias %q: %w", a, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRelease(row scanner) (delta.ReleaseSnapshot, error) {
	var (
		r          delta.ReleaseSnapshot
		total      sql.NullInt64
		meta       string
		updatedAt  string
		inactiveAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.ArtistKey, &r.Source, &r.SourceID, &r.Title, &r.ReleaseDate, &r.ReleaseType,
		&total, &r.Version, &meta, &r.ETag, &updatedAt, &inactiveAt, &r.InactiveReason)
	if err != nil {
		return r, err
	}
	if total.Valid {
		r.TotalTracks = dto.Int(int(total.Int64))
	}
	r.Metadata = unmarshalMap(meta)
	r.UpdatedAt = parseNullableTime(updatedAt)
	if inactiveAt.Valid {
		r.InactiveAt = parseNullableTime(inactiveAt.String)
	}
	return r, nil
}

// releaseETag is a short content hash of the fields the delta engine
// compares.
func releaseETag(r dto.ProviderRelease) string {
	fp := delta.ReleaseFingerprint(r)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", fp)))
	return hex.EncodeToString(sum[:8])
}

func marshalStrings(s []string) string {
	if s == nil {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

func unmarshalStrings(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}

func marshalMap(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalMap(data string) map[string]any {
	if data == "" || data == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil
	}
	return m
}

// parseNullableTime parses an RFC 3339 or SQLite datetime string.
func parseNullableTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// internal/store/loader.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/valpere/TikTokIngester/internal/extract"
)

// ErrMissingKey is returned when the profile carries no usable natural key.
// Such records are discarded upstream of the warehouse.
var ErrMissingKey = errors.New("store: profile has no username")

// Load reconciles one extraction run into the warehouse. After a successful
// call the store holds exactly one row per username and one row per video
// URL, reflecting this run. A failure is fatal for the run: the caller
// retries the whole load at the messaging layer.
func (s *Store) Load(ctx context.Context, profile extract.Profile, videos []extract.Video) error {
	if !profile.HasUsername() {
		return fmt.Errorf("%w (sentinel %q)", ErrMissingKey, profile.Username)
	}

	videos = dedupeVideos(videos, s)

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	var err error
	switch s.strategy {
	case StrategyReplace:
		err = s.loadReplace(ctx, profile, videos)
	default:
		err = s.loadMerge(ctx, profile, videos)
	}
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"username": profile.Username,
		"videos":   len(videos),
		"strategy": string(s.strategy),
	}).Info("load complete")
	return nil
}

// dedupeVideos drops rows without a key and collapses duplicate URLs
// (last wins) so the keyed merge never touches a row twice in one batch.
func dedupeVideos(videos []extract.Video, s *Store) []extract.Video {
	seen := make(map[string]int, len(videos))
	out := make([]extract.Video, 0, len(videos))
	for _, v := range videos {
		if v.URL == "" || v.URL == extract.Unknown {
			s.logger.Warn("load: dropping video without a URL key")
			continue
		}
		if i, ok := seen[v.URL]; ok {
			out[i] = v
			continue
		}
		seen[v.URL] = len(out)
		out = append(out, v)
	}
	return out
}

// loadMerge stages the batch and applies a keyed upsert into the permanent
// tables, all inside one transaction. Re-running the same merge with the
// same staged batch produces the same end state.
func (s *Store) loadMerge(ctx context.Context, profile extract.Profile, videos []extract.Video) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin merge: %w", err)
	}
	defer tx.Rollback()

	for _, stage := range []string{"profiles_stage", "videos_stage"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+stage); err != nil {
			return fmt.Errorf("store: clear %s: %w", stage, err)
		}
	}

	if err := s.insertProfile(ctx, tx, "profiles_stage", profile); err != nil {
		return err
	}
	for _, v := range videos {
		if err := s.insertVideo(ctx, tx, "videos_stage", v); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, s.mergeSQL("profiles", "profiles_stage", profileColumns, "username")); err != nil {
		return fmt.Errorf("store: merge profiles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.mergeSQL("videos", "videos_stage", videoColumns, "url")); err != nil {
		return fmt.Errorf("store: merge videos: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit merge: %w", err)
	}
	return nil
}

// loadReplace removes the key's prior rows and reinserts the batch. Videos
// are keyed by URL-contains-username, matching the profile-scoped URL form.
func (s *Store) loadReplace(ctx context.Context, profile extract.Profile, videos []extract.Video) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM profiles WHERE username = ?"), profile.Username); err != nil {
		return fmt.Errorf("store: delete profile rows: %w", err)
	}
	pattern := s.concat("'%@'", "?", "'/%'")
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM videos WHERE url LIKE "+pattern), profile.Username); err != nil {
		return fmt.Errorf("store: delete video rows: %w", err)
	}

	if err := s.insertProfile(ctx, tx, "profiles", profile); err != nil {
		return err
	}
	for _, v := range videos {
		if err := s.insertVideo(ctx, tx, "videos", v); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit replace: %w", err)
	}
	return nil
}

// mergeSQL builds the keyed upsert from a staging table into its base table.
func (s *Store) mergeSQL(table, stage string, columns []string, key string) string {
	cols := strings.Join(columns, ", ")

	var updates []string
	for _, c := range columns {
		if c == key {
			continue
		}
		if s.dialect == DialectMySQL {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", c, c))
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	if s.dialect == DialectMySQL {
		return fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s ON DUPLICATE KEY UPDATE %s",
			table, cols, cols, stage, strings.Join(updates, ", "),
		)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE true ON CONFLICT (%s) DO UPDATE SET %s",
		table, cols, cols, stage, key, strings.Join(updates, ", "),
	)
}

func (s *Store) insertProfile(ctx context.Context, tx *sql.Tx, table string, p extract.Profile) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(profileColumns, ", "), placeholders(len(profileColumns)))
	_, err := tx.ExecContext(ctx, s.rebind(query),
		p.Username, p.UserID, p.DisplayName, p.FollowingCount, p.FollowerCount,
		p.TotalLikeCount, p.Bio, p.Caption, p.BioLink, p.ProfilePicURL,
		p.IsVerified, p.ScrapeTimestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert into %s: %w", table, err)
	}
	return nil
}

func (s *Store) insertVideo(ctx context.Context, tx *sql.Tx, table string, v extract.Video) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(videoColumns, ", "), placeholders(len(videoColumns)))
	_, err := tx.ExecContext(ctx, s.rebind(query),
		v.URL, v.Views, v.ThumbnailURL, v.Description, v.CreateTime,
		v.LikeCount, v.CommentCount, v.ShareCount, v.ScrapeTimestamp,
	)
	if err != nil {
		return fmt.Errorf("store: insert into %s: %w", table, err)
	}
	return nil
}

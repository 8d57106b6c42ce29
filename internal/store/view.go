// internal/store/view.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/valpere/TikTokIngester/internal/numeric"
)

// Summary is one row of the per-username rollup derived from the base
// tables. It is recomputed on read so it always reflects the latest loads.
type Summary struct {
	Username       string `json:"username"`
	FollowerCount  int64  `json:"follower_count"`
	TotalLikeCount int64  `json:"total_like_count"`
	VideoCount     int64  `json:"video_count"`
	TotalViews     int64  `json:"total_views"`
	LatestScrape   string `json:"latest_scrape"`
}

// summaryQuery joins videos to their profile through the profile-scoped URL
// form. The per-video scrape maximum comes back separately; the later of it
// and the profile's own stamp is resolved in Go since GREATEST is not
// portable across dialects.
func (s *Store) summaryQuery(filtered bool) string {
	pattern := s.concat("'%@'", "p.username", "'/%'")
	where := "WHERE p.username IS NOT NULL AND p.username <> ''"
	if filtered {
		where += " AND p.username = ?"
	}
	return fmt.Sprintf(`
SELECT
	p.username,
	p.follower_count,
	p.total_like_count,
	p.scrape_timestamp,
	COUNT(v.url) AS video_count,
	COALESCE(SUM(v.views), 0) AS total_views,
	COALESCE(MAX(v.scrape_timestamp), '') AS latest_video_scrape
FROM profiles p
LEFT JOIN videos v ON v.url LIKE %s
%s
GROUP BY p.username, p.follower_count, p.total_like_count, p.scrape_timestamp
ORDER BY p.username`, pattern, where)
}

// Summaries returns the rollup for every persisted profile.
func (s *Store) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(s.summaryQuery(false)))
	if err != nil {
		return nil, fmt.Errorf("store: query summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// SummaryFor returns the rollup for one username, or sql.ErrNoRows.
func (s *Store) SummaryFor(ctx context.Context, username string) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(s.summaryQuery(true)), username)
	if err != nil {
		return Summary{}, fmt.Errorf("store: query summary: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return Summary{}, err
	}
	if len(summaries) == 0 {
		return Summary{}, sql.ErrNoRows
	}
	return summaries[0], nil
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var summaries []Summary
	for rows.Next() {
		var (
			row               Summary
			likesRaw          sql.NullString
			profileScrape     sql.NullString
			latestVideoScrape sql.NullString
		)
		if err := rows.Scan(
			&row.Username, &row.FollowerCount, &likesRaw, &profileScrape,
			&row.VideoCount, &row.TotalViews, &latestVideoScrape,
		); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}

		// The likes column is read as text and normalized: stores predating
		// the integer migration may still hold string rows, humanized ones
		// included.
		row.TotalLikeCount = numeric.NormalizeCount(likesRaw.String)
		row.LatestScrape = laterTimestamp(profileScrape.String, latestVideoScrape.String)

		summaries = append(summaries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate summaries: %w", err)
	}
	return summaries, nil
}

// laterTimestamp picks the later RFC3339 instant; the encoding orders
// lexicographically so plain comparison is enough.
func laterTimestamp(a, b string) string {
	if b > a {
		return b
	}
	return a
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/metrics"
)

// PostgresStore is the production Postgres-backed implementation.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertSQL = `
INSERT INTO anime (
	id, title, media_type, num_episodes, synopsis, status,
	start_date, end_date, mean, popularity, members,
	genres, studios, broadcast_day, broadcast_time,
	streaming_services, main_picture, alternative_titles,
	season, year, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$21
)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	media_type = EXCLUDED.media_type,
	num_episodes = EXCLUDED.num_episodes,
	synopsis = EXCLUDED.synopsis,
	status = EXCLUDED.status,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	mean = EXCLUDED.mean,
	popularity = EXCLUDED.popularity,
	members = EXCLUDED.members,
	genres = EXCLUDED.genres,
	studios = EXCLUDED.studios,
	broadcast_day = EXCLUDED.broadcast_day,
	broadcast_time = EXCLUDED.broadcast_time,
	streaming_services = EXCLUDED.streaming_services,
	main_picture = EXCLUDED.main_picture,
	alternative_titles = EXCLUDED.alternative_titles,
	season = EXCLUDED.season,
	year = EXCLUDED.year,
	updated_at = EXCLUDED.updated_at`

// UpsertEntries writes one batch. Each row is a full-record overwrite on
// conflict; created_at survives, updated_at is bumped.
func (s *PostgresStore) UpsertEntries(ctx context.Context, entries []catalog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()
	now := start.UTC()

	batch := &pgx.Batch{}
	for _, e := range entries {
		genres, _ := json.Marshal(e.Genres)
		studios, _ := json.Marshal(e.Studios)
		streaming, _ := json.Marshal(e.Streaming)
		var mainPicture, altTitles []byte
		if e.MainPicture != nil {
			mainPicture, _ = json.Marshal(e.MainPicture)
		}
		if e.AlternativeTitles != nil {
			altTitles, _ = json.Marshal(e.AlternativeTitles)
		}

		batch.Queue(upsertSQL,
			e.ID, e.Title, e.MediaType, e.NumEpisodes, e.Synopsis, e.Status,
			nullStr(e.StartDate), nullStr(e.EndDate), e.Mean, e.Popularity, e.Members,
			genres, studios, e.BroadcastDay, e.BroadcastTime,
			streaming, mainPicture, altTitles,
			e.Season, e.Year, now,
		)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()
	for range entries {
		if _, err := br.Exec(); err != nil {
			return &PersistenceError{Op: "upsert anime", Err: err}
		}
	}

	metrics.EntriesUpserted.Add(float64(len(entries)))
	metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (s *PostgresStore) UpdateScore(ctx context.Context, id int, mean *float64, status string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE anime SET mean=$2, status=$3, updated_at=$4 WHERE id=$1`,
		id, mean, status, time.Now().UTC())
	if err != nil {
		return &PersistenceError{Op: "update score", Err: err}
	}
	return nil
}

func (s *PostgresStore) UpdatePopularity(ctx context.Context, id, popularity int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE anime SET popularity=$2, updated_at=$3 WHERE id=$1`,
		id, popularity, time.Now().UTC())
	if err != nil {
		return &PersistenceError{Op: "update popularity", Err: err}
	}
	return nil
}

func (s *PostgresStore) AiringIDs(ctx context.Context, limit int) ([]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM anime WHERE status = 'currently_airing' ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "select airing", Err: err}
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *PostgresStore) MissingPopularityIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM anime WHERE popularity IS NULL ORDER BY id`)
	if err != nil {
		return nil, &PersistenceError{Op: "select missing popularity", Err: err}
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *PostgresStore) KeepAlive(ctx context.Context) error {
	var id int
	err := s.db.QueryRow(ctx, `SELECT id FROM anime LIMIT 1`).Scan(&id)
	if err != nil && err != pgx.ErrNoRows {
		return &PersistenceError{Op: "keepalive", Err: err}
	}
	return nil
}

func scanIDs(rows pgx.Rows) ([]int, error) {
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, &PersistenceError{Op: "scan id", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Empty upstream date strings become NULL rather than ''.
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

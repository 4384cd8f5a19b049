package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagen/streamscout/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) CreateOrGetSource(ctx context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sources (name, source_type, url, user_agent, enabled)
		 VALUES ($1, $2, $3, NULLIF($4,''), true)
		 ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, user_agent = EXCLUDED.user_agent
		 RETURNING id`,
		name, sourceType, url, userAgent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("CreateOrGetSource: %w", err)
	}
	return id, nil
}

const sourceColumns = `id, name, COALESCE(url,''), source_type, COALESCE(user_agent,''), enabled, last_updated, last_checked, created_at`

func scanSource(row pgx.Row) (*models.Source, error) {
	var s models.Source
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.SourceType, &s.UserAgent, &s.Enabled,
		&s.LastUpdated, &s.LastChecked, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	s, err := scanSource(p.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSourceByID: %w", err)
	}
	return s, nil
}

func (p *Postgres) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	s, err := scanSource(p.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSourceByName: %w", err)
	}
	return s, nil
}

func (p *Postgres) GetSourceByURL(ctx context.Context, url string) (*models.Source, error) {
	s, err := scanSource(p.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE url = $1 ORDER BY id LIMIT 1`, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSourceByURL: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	defer rows.Close()

	sources := make([]models.Source, 0)
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSources scan: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

func (p *Postgres) DeleteSource(ctx context.Context, sourceID int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpdateSourceLastUpdated(ctx context.Context, sourceID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE sources SET last_updated = NOW() WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("UpdateSourceLastUpdated: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateSourceLastChecked(ctx context.Context, sourceID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE sources SET last_checked = NOW() WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("UpdateSourceLastChecked: %w", err)
	}
	return nil
}

func (p *Postgres) GetOrCreateGroup(ctx context.Context, sourceID int64, name string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO groups (name, source_id) VALUES ($1, $2)
		 ON CONFLICT (name, source_id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name, sourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("GetOrCreateGroup: %w", err)
	}
	return id, nil
}

func (p *Postgres) RemoveOrphanedGroups(ctx context.Context, sourceID int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM groups g WHERE g.source_id = $1
		 AND NOT EXISTS (SELECT 1 FROM channels c WHERE c.group_id = g.id)`,
		sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveOrphanedGroups: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) ListGroups(ctx context.Context, sourceID *int64) ([]models.Group, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT g.id, g.name, g.source_id, COUNT(c.id)
		 FROM groups g LEFT JOIN channels c ON c.group_id = g.id
		 WHERE ($1::bigint IS NULL OR g.source_id = $1)
		 GROUP BY g.id
		 ORDER BY MIN(c.position) NULLS LAST, g.id`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListGroups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.Group, 0)
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.SourceID, &g.ChannelCount); err != nil {
			return nil, fmt.Errorf("ListGroups scan: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpsertChannel keeps the stored status of an existing channel; only a
// check changes it.
func (p *Postgres) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	status := ch.Status
	if status == "" {
		status = models.StatusUnknown
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (name, url, logo, group_id, tvg_id, tvg_name, language, country,
		                       stream_type, status, position, source_id)
		 VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''),
		         $9, $10, $11, $12)
		 ON CONFLICT (source_id, url) DO UPDATE SET
		   name = EXCLUDED.name, logo = EXCLUDED.logo, group_id = EXCLUDED.group_id,
		   tvg_id = EXCLUDED.tvg_id, tvg_name = EXCLUDED.tvg_name, language = EXCLUDED.language,
		   country = EXCLUDED.country, stream_type = EXCLUDED.stream_type, position = EXCLUDED.position
		 RETURNING id`,
		ch.Name, ch.URL, ch.Logo, ch.GroupID, ch.TvgID, ch.TvgName, ch.Language, ch.Country,
		string(ch.StreamType), string(status), ch.Position, ch.SourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertChannel: %w", err)
	}
	return id, nil
}

func (p *Postgres) UpsertChannelHeaders(ctx context.Context, channelID int64, h *models.ChannelHttpHeaders) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO channel_http_headers (channel_id, referrer, user_agent, http_origin)
		 VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''))
		 ON CONFLICT (channel_id) DO UPDATE SET
		   referrer = EXCLUDED.referrer, user_agent = EXCLUDED.user_agent,
		   http_origin = EXCLUDED.http_origin`,
		channelID, h.Referrer, h.UserAgent, h.HTTPOrigin,
	)
	if err != nil {
		return fmt.Errorf("UpsertChannelHeaders: %w", err)
	}
	return nil
}

func (p *Postgres) RemoveStaleChannelHeaders(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	if keepIDs == nil {
		keepIDs = []int64{}
	}
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channel_http_headers h USING channels c
		 WHERE h.channel_id = c.id AND c.source_id = $1 AND NOT (h.channel_id = ANY($2))`,
		sourceID, keepIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveStaleChannelHeaders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	if keepIDs == nil {
		keepIDs = []int64{}
	}
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channels WHERE source_id = $1 AND NOT (id = ANY($2))`,
		sourceID, keepIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	return tag.RowsAffected(), nil
}

const channelSelect = `SELECT c.id, c.name, c.url, COALESCE(c.logo,''), COALESCE(g.name,''), c.group_id,
	COALESCE(c.tvg_id,''), COALESCE(c.tvg_name,''), COALESCE(c.language,''), COALESCE(c.country,''),
	c.status, c.stream_type, c.position, c.source_id, c.checked_at,
	COALESCE(h.referrer,''), COALESCE(h.user_agent,''), COALESCE(h.http_origin,'')
	FROM channels c
	LEFT JOIN groups g ON g.id = c.group_id
	LEFT JOIN channel_http_headers h ON h.channel_id = c.id`

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var (
		ch                 models.Channel
		status, streamType string
		h                  models.ChannelHttpHeaders
	)
	err := row.Scan(&ch.ID, &ch.Name, &ch.URL, &ch.Logo, &ch.Group, &ch.GroupID,
		&ch.TvgID, &ch.TvgName, &ch.Language, &ch.Country,
		&status, &streamType, &ch.Position, &ch.SourceID, &ch.CheckedAt,
		&h.Referrer, &h.UserAgent, &h.HTTPOrigin)
	if err != nil {
		return nil, err
	}
	ch.Status = models.Status(status)
	ch.StreamType = models.StreamType(streamType)
	ch.MimeHint = ch.StreamType.MimeHint(ch.URL)
	if !h.Empty() {
		ch.Headers = &h
	}
	return &ch, nil
}

func (p *Postgres) ListChannelsBySource(ctx context.Context, sourceID int64) ([]*models.Channel, error) {
	rows, err := p.pool.Query(ctx, channelSelect+` WHERE c.source_id = $1 ORDER BY c.position, c.id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("ListChannelsBySource: %w", err)
	}
	defer rows.Close()

	channels := make([]*models.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("ListChannelsBySource scan: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (p *Postgres) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	filter.Normalize()
	where, args := channelWhere(filter)

	var total int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM channels c LEFT JOIN groups g ON g.id = c.group_id`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListChannels count: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	q := fmt.Sprintf(`%s%s ORDER BY c.source_id, c.position, c.id LIMIT $%d OFFSET $%d`,
		channelSelect, where, len(args)-1, len(args))
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	channels := make([]models.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListChannels scan: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, total, rows.Err()
}

// likeEscaper makes a search term match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// channelWhere builds the WHERE clause shared by the count and page queries.
func channelWhere(f ChannelFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.SourceID != nil {
		add("c.source_id = $%d", *f.SourceID)
	}
	if f.GroupID != nil {
		add("c.group_id = $%d", *f.GroupID)
	}
	if f.Status != "" {
		add("c.status = $%d", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(c.name ILIKE $%[1]d ESCAPE '\' OR g.name ILIKE $%[1]d ESCAPE '\' OR c.url ILIKE $%[1]d ESCAPE '\')`, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (p *Postgres) UpdateChannelStatuses(ctx context.Context, updates []StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`UPDATE channels SET status = $1, checked_at = $2 WHERE id = $3`,
			string(u.Status), u.CheckedAt, u.ChannelID)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("UpdateChannelStatuses: %w", err)
	}
	return nil
}

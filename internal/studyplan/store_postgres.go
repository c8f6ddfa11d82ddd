package studyplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/rapidrevise/internal/ai"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store. A plan is split across
// study_plans, plan_qa, plan_topics and plan_videos.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a plan store on an existing pool. The schema must
// already be migrated.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, plan *StudyPlan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("plan is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	id := plan.ID
	if id == "" {
		id = NewID()
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	schedule, err := json.Marshal(plan.Schedule)
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	resources, err := json.Marshal(plan.Resources)
	if err != nil {
		return "", fmt.Errorf("encode resources: %w", err)
	}
	usage, err := json.Marshal(plan.Usage)
	if err != nil {
		return "", fmt.Errorf("encode usage: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO study_plans (id, board, class_level, department, subject, study_hours,
		   total_video_minutes, schedule, resources, usage, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id,
		plan.Metadata.Board,
		plan.Metadata.ClassLevel,
		plan.Metadata.Department,
		plan.Metadata.Subject,
		plan.Schedule.StudyHours,
		plan.TotalVideoMinutes,
		schedule,
		resources,
		usage,
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert study plan: %w", err)
	}

	batch := &pgx.Batch{}
	for i, qa := range plan.StructuredQA {
		batch.Queue(
			`INSERT INTO plan_qa (plan_id, position, question, recommendation)
			 VALUES ($1::uuid, $2, $3, $4)`,
			id, i, qa.Question, qa.Recommendation,
		)
	}
	for ti, t := range plan.Topics {
		batch.Queue(
			`INSERT INTO plan_topics (plan_id, position, name, importance, prep_time_minutes,
			   total_video_minutes, placeholder, padded, raw_analysis)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, ti, t.Name, t.Importance, t.PrepTimeMinutes,
			t.TotalVideoMinutes, t.Placeholder, t.Padded, nullIfEmpty(t.RawAnalysis),
		)
		for vi, v := range t.Videos {
			batch.Queue(
				`INSERT INTO plan_videos (plan_id, topic_position, position, video_id, title, channel,
				   channel_id, description, url, thumbnail, duration_minutes, views,
				   engagement_score, relevance_score, published_at)
				 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				id, ti, vi, v.ID, v.Title, v.Channel,
				nullIfEmpty(v.ChannelID), nullIfEmpty(v.Description), v.URL, v.Thumbnail,
				v.DurationMinutes, nullIfUnknown(v.Views),
				v.EngagementScore, v.RelevanceScore, nullIfZeroTime(v.PublishedAt),
			)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return "", fmt.Errorf("insert plan items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit study plan: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*StudyPlan, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	plan := &StudyPlan{}
	var studyHours float64
	var schedule, resources, usage []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, board, class_level, department, subject, study_hours,
		        total_video_minutes, schedule, resources, usage, created_at
		 FROM study_plans
		 WHERE id = $1::uuid`,
		id,
	).Scan(
		&plan.ID,
		&plan.Metadata.Board,
		&plan.Metadata.ClassLevel,
		&plan.Metadata.Department,
		&plan.Metadata.Subject,
		&studyHours,
		&plan.TotalVideoMinutes,
		&schedule,
		&resources,
		&usage,
		&plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get study plan: %w", err)
	}

	if err := unmarshalColumn(schedule, &plan.Schedule); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	plan.Schedule.StudyHours = studyHours
	if err := unmarshalColumn(resources, &plan.Resources); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}
	var u map[string]ai.StageUsage
	if err := unmarshalColumn(usage, &u); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}
	plan.Usage = u

	if plan.StructuredQA, err = s.loadQA(ctx, id); err != nil {
		return nil, err
	}
	if plan.Topics, err = s.loadTopics(ctx, id); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *PostgresStore) loadQA(ctx context.Context, id string) ([]QA, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT question, recommendation
		 FROM plan_qa
		 WHERE plan_id = $1::uuid
		 ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan qa: %w", err)
	}
	qa, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (QA, error) {
		var q QA
		err := row.Scan(&q.Question, &q.Recommendation)
		return q, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan plan qa: %w", err)
	}
	return qa, nil
}

func (s *PostgresStore) loadTopics(ctx context.Context, id string) ([]Topic, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, importance, prep_time_minutes, total_video_minutes, placeholder, padded, raw_analysis
		 FROM plan_topics
		 WHERE plan_id = $1::uuid
		 ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan topics: %w", err)
	}
	topics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Topic, error) {
		var t Topic
		var raw *string
		err := row.Scan(&t.Name, &t.Importance, &t.PrepTimeMinutes, &t.TotalVideoMinutes,
			&t.Placeholder, &t.Padded, &raw)
		if raw != nil {
			t.RawAnalysis = *raw
		}
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan plan topics: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT topic_position, video_id, title, channel, channel_id, description, url, thumbnail,
		        duration_minutes, views, engagement_score, relevance_score, published_at
		 FROM plan_videos
		 WHERE plan_id = $1::uuid
		 ORDER BY topic_position ASC, position ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query plan videos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos int
		var v Video
		var channelID, description *string
		var views *int64
		var publishedAt *time.Time
		if err := rows.Scan(
			&pos,
			&v.ID,
			&v.Title,
			&v.Channel,
			&channelID,
			&description,
			&v.URL,
			&v.Thumbnail,
			&v.DurationMinutes,
			&views,
			&v.EngagementScore,
			&v.RelevanceScore,
			&publishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan plan video: %w", err)
		}
		if channelID != nil {
			v.ChannelID = *channelID
		}
		if description != nil {
			v.Description = *description
		}
		if views != nil {
			v.Views = KnownViews(*views)
		}
		if publishedAt != nil {
			v.PublishedAt = publishedAt.UTC()
		}
		if pos < 0 || pos >= len(topics) {
			return nil, fmt.Errorf("plan video %s references missing topic %d", v.ID, pos)
		}
		topics[pos].Videos = append(topics[pos].Videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan videos: %w", err)
	}
	return topics, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT p.id::text, p.board, p.class_level, p.department, p.subject, p.study_hours, p.created_at,
		        (SELECT COUNT(*) FROM plan_topics t WHERE t.plan_id = p.id),
		        (SELECT COUNT(*) FROM plan_videos v WHERE v.plan_id = p.id)
		 FROM study_plans p
		 WHERE $1 = '' OR lower(p.subject) = lower($1)
		 ORDER BY p.created_at DESC, p.id ASC
		 LIMIT $2 OFFSET $3`,
		opts.Subject,
		opts.limit(),
		max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("list study plans: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var sm Summary
		err := row.Scan(
			&sm.ID,
			&sm.Metadata.Board,
			&sm.Metadata.ClassLevel,
			&sm.Metadata.Department,
			&sm.Metadata.Subject,
			&sm.StudyHours,
			&sm.CreatedAt,
			&sm.TopicCount,
			&sm.VideoCount,
		)
		return sm, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan study plans: %w", err)
	}
	return out, nil
}

// Delete removes a plan; child rows go with it through ON DELETE CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM study_plans WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete study plan: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// validID reports whether id can be a stored plan id. Anything else would
// fail the uuid cast and is reported as not found instead.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func unmarshalColumn(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullIfUnknown(v Views) any {
	if !v.Known {
		return nil
	}
	return v.Count
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

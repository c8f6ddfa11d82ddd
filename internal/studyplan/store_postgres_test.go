package studyplan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/rapidrevise/internal/platform/database"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

func newPostgresStore(t *testing.T) *studyplan.PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("rapidrevise"),
		postgres.WithUsername("rapid"),
		postgres.WithPassword("rapid"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	store, err := studyplan.NewPostgresStore(db.Pool)
	require.NoError(t, err)
	return store
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	plan := samplePlan("Physics", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	plan.Topics[0].Videos[0].Views = studyplan.KnownViews(1200)
	plan.Topics[1].Videos = []studyplan.Video{video("w1", "Standing waves", 8)}
	plan.Schedule = studyplan.Assemble(studyplan.Input{Subject: "Physics", StudyHours: 2, Topics: plan.Topics})
	plan.Resources = []studyplan.Resource{{Title: "Cheatsheet for Physics", Kind: studyplan.KindCheatsheet}}

	id, err := store.Save(ctx, plan)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, plan.Metadata, got.Metadata)
	require.Equal(t, plan.StructuredQA, got.StructuredQA)
	require.Len(t, got.Topics, 2)
	require.Equal(t, "Optics", got.Topics[0].Name)
	require.Len(t, got.Topics[0].Videos, 1)
	require.Equal(t, studyplan.KnownViews(1200), got.Topics[0].Videos[0].Views)
	require.Equal(t, "w1", got.Topics[1].Videos[0].ID)
	require.False(t, got.Topics[1].Videos[0].Views.Known)
	require.Equal(t, plan.Schedule.Steps, got.Schedule.Steps)
	require.Equal(t, plan.Resources, got.Resources)
	require.True(t, plan.CreatedAt.Equal(got.CreatedAt))
}

func TestPostgresStore_ListDelete(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older, err := store.Save(ctx, samplePlan("Physics", base))
	require.NoError(t, err)
	newer, err := store.Save(ctx, samplePlan("Chemistry", base.Add(time.Hour)))
	require.NoError(t, err)

	all, err := store.List(ctx, studyplan.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, newer, all[0].ID)
	require.Equal(t, 2, all[1].TopicCount)
	require.Equal(t, 1, all[1].VideoCount)

	physics, err := store.List(ctx, studyplan.ListOptions{Subject: "physics"})
	require.NoError(t, err)
	require.Len(t, physics, 1)
	require.Equal(t, older, physics[0].ID)

	require.NoError(t, store.Delete(ctx, older))
	_, err = store.Get(ctx, older)
	require.ErrorIs(t, err, studyplan.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, older), studyplan.ErrNotFound)
	_, err = store.Get(ctx, "not-a-uuid")
	require.ErrorIs(t, err, studyplan.ErrNotFound)
}

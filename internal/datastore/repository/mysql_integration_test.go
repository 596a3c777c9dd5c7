//go:build integration

package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/segmentlab/internal/datastore"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/logger"
)

// TestMySQLStore runs the label and cascade paths against a real MySQL server.
// Run with: go test -tags integration ./internal/datastore/repository/
func TestMySQLStore(t *testing.T) {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("segmentlab"),
		tcmysql.WithUsername("lab"),
		tcmysql.WithPassword("lab"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	manager, err := datastore.NewMySQLManager(&datastore.MySQLConfig{
		Host:     host,
		Port:     port.Port(),
		Username: "lab",
		Password: "lab",
		Database: "segmentlab",
		Logger:   logger.NewConsoleLogger("mysql_test", logger.LogLevelError),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	require.NoError(t, manager.Initialize())

	store := repository.NewStore(manager.DB())

	a, err := store.Labels.GetOrCreate(ctx, "bird")
	require.NoError(t, err)
	b, err := store.Labels.GetOrCreate(ctx, "bird")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	job := &entities.AudioJob{SourceName: "x.wav", SourcePath: "/x.wav", SegmentDuration: 2, Overlap: 0}
	require.NoError(t, store.Jobs.Create(ctx, job))
	require.NoError(t, store.Segments.CreateBatch(ctx, []entities.Segment{{JobID: job.ID, Ordinal: 0, EndSeconds: 2, LabelID: &a.ID}}))
	require.NoError(t, store.Jobs.SetState(ctx, job.ID, entities.JobPending, 0, ""))

	require.NoError(t, store.Labels.Delete(ctx, a.ID))
	labeled, err := store.Segments.ListLabeled(ctx, []uint{job.ID})
	require.NoError(t, err)
	assert.Empty(t, labeled)

	n, err := store.Jobs.Delete(ctx, []uint{job.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

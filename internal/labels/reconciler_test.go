package labels

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/segmentlab/internal/datastore"
	"github.com/tphakala/segmentlab/internal/datastore/entities"
	"github.com/tphakala/segmentlab/internal/datastore/repository"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) GetOrCreate(ctx context.Context, name string) (*entities.Label, error) {
	args := m.Called(ctx, name)
	if l, ok := args.Get(0).(*entities.Label); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func quietLogger() logger.Logger {
	return logger.NewConsoleLogger("labels_test", logger.LogLevelError)
}

func TestEnsureCachesPerRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := &mockRegistry{}
	reg.On("GetOrCreate", ctx, "bird").Return(&entities.Label{ID: 1, Name: "bird"}, nil).Once()
	reg.On("GetOrCreate", ctx, "frog").Return(&entities.Label{ID: 2, Name: "frog"}, nil).Once()

	r := NewReconciler(reg, quietLogger())

	ids, err := r.Ensure(ctx, []string{"bird", "frog", " bird ", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint{"bird": 1, "frog": 2, " bird ": 1}, ids)

	again, err := r.Ensure(ctx, []string{"bird", "frog"})
	require.NoError(t, err)
	assert.Equal(t, uint(1), again["bird"])

	id, ok := r.ID("frog")
	assert.True(t, ok)
	assert.Equal(t, uint(2), id)
	_, ok = r.ID("owl")
	assert.False(t, ok)

	reg.AssertExpectations(t)
}

func TestEnsurePropagatesStoreErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.NewStd("db down")
	reg := &mockRegistry{}
	reg.On("GetOrCreate", ctx, "bird").Return(nil, boom)

	_, err := NewReconciler(reg, quietLogger()).Ensure(ctx, []string{"bird"})
	require.ErrorIs(t, err, boom)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestNormalizeComposesUnicode(t *testing.T) {
	t.Parallel()

	decomposed := "Pa\u0301jaro"
	composed := "P\u00e1jaro"
	assert.Equal(t, composed, Normalize(decomposed))
	assert.Equal(t, composed, Normalize("  "+composed+"\t"))
}

func TestEnsureIsIdempotentAgainstDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	manager, err := datastore.NewSQLiteManager(datastore.Config{
		Path:   filepath.Join(t.TempDir(), "labels.db"),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() { _ = manager.Close() })
	store := repository.NewStore(manager.DB())

	names := []string{"bird", "frog", "rain"}

	var wg sync.WaitGroup
	results := make([]map[string]uint, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := NewReconciler(store.Labels, quietLogger()).Ensure(ctx, names)
			assert.NoError(t, err)
			results[i] = ids
		}()
	}
	wg.Wait()

	for _, ids := range results[1:] {
		assert.Equal(t, results[0], ids)
	}
	all, err := store.Labels.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(names))
}

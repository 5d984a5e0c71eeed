package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/raincell-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// Every pooled connection to :memory: would be a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, slog.Default())
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

var observed = domain.ObservedDescriptor(domain.Station{Name: "Malabe", SourceLabel: "A&T Labs"})

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	v, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestUpsertAndRetrieve(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2018, 10, 17, 3, 30, 0, 0, time.UTC)

	var samples []domain.Sample
	for i := 0; i < 6; i++ {
		samples = append(samples, domain.Sample{Time: base.Add(time.Duration(i) * 10 * time.Minute), Value: float64(i)})
	}
	// Inserted out of order; Retrieve sorts.
	require.NoError(t, store.UpsertSeries(ctx, observed, []domain.Sample{samples[3], samples[4], samples[5]}))
	require.NoError(t, store.UpsertSeries(ctx, observed, samples[:3]))

	t.Run("inclusive range ordered by time", func(t *testing.T) {
		got, err := store.Retrieve(ctx, observed, samples[1].Time, samples[4].Time)
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, s := range got {
			assert.True(t, s.Time.Equal(samples[i+1].Time))
			assert.Equal(t, samples[i+1].Value, s.Value)
		}
	})

	t.Run("zoned bounds", func(t *testing.T) {
		colombo := time.FixedZone("+0530", 5*3600+30*60)
		got, err := store.Retrieve(ctx, observed, base.In(colombo), base.In(colombo))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Time.Equal(base))
	})

	t.Run("upsert replaces values", func(t *testing.T) {
		require.NoError(t, store.UpsertSeries(ctx, observed, []domain.Sample{{Time: base, Value: 42}}))
		got, err := store.Retrieve(ctx, observed, base, base)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 42.0, got[0].Value)
	})

	t.Run("descriptor fields discriminate series", func(t *testing.T) {
		other := observed
		other.Name = "Leecom"
		got, err := store.Retrieve(ctx, other, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)

		fallback := domain.FallbackDescriptor(domain.Station{FallbackKey: "Malabe"}, "")
		got, err = store.Retrieve(ctx, fallback, base, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestRetrieve_CancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Retrieve(ctx, observed, time.Now(), time.Now())
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	store := setupTestStore(t)
	store.maxElapsed = time.Second

	t.Run("transient errors are retried", func(t *testing.T) {
		calls := 0
		err := store.retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are permanent", func(t *testing.T) {
		calls := 0
		boom := errors.New("no such table: data")
		err := store.retry(context.Background(), func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("retry budget", func(t *testing.T) {
		store.maxRetries = 2
		calls := 0
		err := store.retry(context.Background(), func() error {
			calls++
			return errors.New("database is locked")
		})
		assert.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}

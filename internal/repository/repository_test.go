package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryan-buckman/todod/internal/database"
	"github.com/bryan-buckman/todod/internal/errs"
	"github.com/bryan-buckman/todod/internal/model"
	"github.com/bryan-buckman/todod/internal/worker"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	pool, err := database.Open(context.Background(), database.Config{
		URL:            filepath.Join(t.TempDir(), "todos.db"),
		AcquireTimeout: time.Second,
		BusyTimeout:    time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return New(pool, worker.New(4, zerolog.Nop()))
}

func strPtr(s string) *string { return &s }

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Should round-trip a created todo", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "buy milk", Description: strPtr("2 litres")})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.ID)
		assert.Equal(t, "buy milk", created.Title)
		require.NotNil(t, created.Description)
		assert.Equal(t, "2 litres", *created.Description)
		assert.False(t, created.Done)
		assert.False(t, created.Published)

		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("Should store a missing description as null", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "no body"})
		require.NoError(t, err)
		assert.Nil(t, created.Description)
		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Description)
	})

	t.Run("Should assign distinct ids", func(t *testing.T) {
		r := newTestRepo(t)
		a, err := r.Create(ctx, model.NewTodo{Title: "a"})
		require.NoError(t, err)
		b, err := r.Create(ctx, model.NewTodo{Title: "b"})
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	deleted, err := r.Create(ctx, model.NewTodo{Title: "gone soon"})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, deleted.ID))

	for _, id := range []int64{deleted.ID, 999} {
		t.Run("Should report not found for get", func(t *testing.T) {
			_, err := r.Get(ctx, id)
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
			assert.ErrorIs(t, err, errs.ErrNotFound)
		})
		t.Run("Should report not found for update", func(t *testing.T) {
			_, err := r.Update(ctx, id, model.Changeset{Title: strPtr("x")})
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		})
		t.Run("Should report not found for an empty update", func(t *testing.T) {
			_, err := r.Update(ctx, id, model.Changeset{})
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		})
		t.Run("Should report not found for set done", func(t *testing.T) {
			err := r.SetDone(ctx, id, true)
			assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
		})
		t.Run("Should treat delete as a no-op success", func(t *testing.T) {
			assert.NoError(t, r.Delete(ctx, id))
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("Should change only the title", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "old", Description: strPtr("keep me")})
		require.NoError(t, err)

		updated, err := r.Update(ctx, created.ID, model.Changeset{Title: strPtr("x")})
		require.NoError(t, err)
		assert.Equal(t, "x", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "keep me", *updated.Description)

		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("Should change only the description", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "title stays"})
		require.NoError(t, err)
		updated, err := r.Update(ctx, created.ID, model.Changeset{Description: strPtr("new body")})
		require.NoError(t, err)
		assert.Equal(t, "title stays", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "new body", *updated.Description)
	})

	t.Run("Should leave done untouched", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "t"})
		require.NoError(t, err)
		require.NoError(t, r.SetDone(ctx, created.ID, true))
		updated, err := r.Update(ctx, created.ID, model.Changeset{Title: strPtr("t2")})
		require.NoError(t, err)
		assert.True(t, updated.Done)
	})

	t.Run("Should return the current row for an empty changeset", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "same"})
		require.NoError(t, err)
		got, err := r.Update(ctx, created.ID, model.Changeset{})
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})
}

func TestSetDone(t *testing.T) {
	ctx := context.Background()

	t.Run("Should be idempotent", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "twice"})
		require.NoError(t, err)
		require.NoError(t, r.SetDone(ctx, created.ID, true))
		require.NoError(t, r.SetDone(ctx, created.ID, true))
		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, got.Done)
	})

	t.Run("Should clear the flag", func(t *testing.T) {
		r := newTestRepo(t)
		created, err := r.Create(ctx, model.NewTodo{Title: "toggle"})
		require.NoError(t, err)
		require.NoError(t, r.SetDone(ctx, created.ID, true))
		require.NoError(t, r.SetDone(ctx, created.ID, false))
		got, err := r.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, got.Done)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("Should return an empty non-nil slice", func(t *testing.T) {
		r := newTestRepo(t)
		todos, err := r.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, todos)
		assert.Empty(t, todos)
	})

	t.Run("Should return N minus M distinct todos in insertion order", func(t *testing.T) {
		r := newTestRepo(t)
		const n = 10
		var ids []int64
		for i := 0; i < n; i++ {
			created, err := r.Create(ctx, model.NewTodo{Title: "item"})
			require.NoError(t, err)
			ids = append(ids, created.ID)
		}
		deleted := map[int64]bool{ids[1]: true, ids[4]: true, ids[9]: true}
		for id := range deleted {
			require.NoError(t, r.Delete(ctx, id))
		}

		todos, err := r.List(ctx)
		require.NoError(t, err)
		require.Len(t, todos, n-len(deleted))
		seen := map[int64]bool{}
		var prev int64
		for _, td := range todos {
			assert.False(t, seen[td.ID], "duplicate id %d", td.ID)
			assert.False(t, deleted[td.ID], "deleted id %d listed", td.ID)
			assert.Greater(t, td.ID, prev)
			seen[td.ID] = true
			prev = td.ID
		}
	})
}

type failingStore struct {
	database.Store
	err error
}

func (f failingStore) Acquire(context.Context) (*sqlx.Conn, error) { return nil, f.err }
func (f failingStore) Dialect() database.Dialect                   { return database.DialectSQLite }

func TestPoolFailure(t *testing.T) {
	t.Run("Should surface pool errors unchanged", func(t *testing.T) {
		poolErr := errs.E("database: acquire", errs.KindPool, database.ErrPoolExhausted)
		r := New(failingStore{err: poolErr}, worker.New(1, zerolog.Nop()))
		_, err := r.List(context.Background())
		assert.Equal(t, errs.KindPool, errs.KindOf(err))
		assert.True(t, errors.Is(err, database.ErrPoolExhausted))
		err = r.Delete(context.Background(), 1)
		assert.Equal(t, errs.KindPool, errs.KindOf(err))
	})
}

func TestStorageFailure(t *testing.T) {
	t.Run("Should classify driver errors as storage errors", func(t *testing.T) {
		pool, err := database.Open(context.Background(), database.Config{
			URL: filepath.Join(t.TempDir(), "broken.db"),
		}, zerolog.Nop())
		require.NoError(t, err)
		defer pool.Close()
		_, err = pool.DB().Exec(`DROP TABLE todos`)
		require.NoError(t, err)

		r := New(pool, worker.New(1, zerolog.Nop()))
		_, err = r.Create(context.Background(), model.NewTodo{Title: "x"})
		assert.Equal(t, errs.KindStorage, errs.KindOf(err))
		_, err = r.Get(context.Background(), 1)
		assert.Equal(t, errs.KindStorage, errs.KindOf(err))
	})
}

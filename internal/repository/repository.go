// Package repository maps todo operations onto single SQL statements.
//
// Every operation runs on the worker pool: the worker acquires a connection,
// executes one statement, and releases the connection whatever the outcome.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/bryan-buckman/todod/internal/database"
	"github.com/bryan-buckman/todod/internal/errs"
	"github.com/bryan-buckman/todod/internal/model"
	"github.com/bryan-buckman/todod/internal/worker"
	"github.com/jmoiron/sqlx"
)

// Repository is the todo data access layer.
type Repository struct {
	store   database.Store
	workers *worker.Pool
	sb      sq.StatementBuilderType
}

// New builds a Repository over store, dispatching blocking work to workers.
func New(store database.Store, workers *worker.Pool) *Repository {
	var ph sq.PlaceholderFormat = sq.Question
	if store.Dialect() == database.DialectPostgres {
		ph = sq.Dollar
	}
	return &Repository{
		store:   store,
		workers: workers,
		sb:      sq.StatementBuilder.PlaceholderFormat(ph),
	}
}

var returningTodo = "RETURNING " + strings.Join(model.TodoColumns, ", ")

// run executes fn on a worker with a freshly acquired connection.
func run[T any](ctx context.Context, r *Repository, op string, fn func(context.Context, *sqlx.Conn) (T, error)) (T, error) {
	return worker.Do(ctx, r.workers, op, func(ctx context.Context) (T, error) {
		var zero T
		conn, err := r.store.Acquire(ctx)
		if err != nil {
			return zero, err
		}
		defer conn.Close()
		return fn(ctx, conn)
	})
}

func storageErr(op string, err error) error {
	return errs.E(op, errs.KindStorage, err)
}

// Create inserts a todo with done and published false and returns the stored row.
func (r *Repository) Create(ctx context.Context, in model.NewTodo) (model.Todo, error) {
	const op = "repository: create todo"
	q, args, err := r.sb.Insert(model.TableTodos).
		Columns(model.ColumnTitle, model.ColumnDescription, model.ColumnDone, model.ColumnPublished).
		Values(in.Title, in.Description, false, false).
		Suffix(returningTodo).
		ToSql()
	if err != nil {
		return model.Todo{}, storageErr(op, fmt.Errorf("build query: %w", err))
	}
	return run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) (model.Todo, error) {
		var t model.Todo
		if err := conn.GetContext(ctx, &t, q, args...); err != nil {
			return model.Todo{}, storageErr(op, err)
		}
		return t, nil
	})
}

// List returns every todo in insertion order. The result is never nil.
func (r *Repository) List(ctx context.Context) ([]model.Todo, error) {
	const op = "repository: list todos"
	q, args, err := r.sb.Select(model.TodoColumns...).
		From(model.TableTodos).
		OrderBy(model.ColumnID).
		ToSql()
	if err != nil {
		return nil, storageErr(op, fmt.Errorf("build query: %w", err))
	}
	return run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) ([]model.Todo, error) {
		todos := []model.Todo{}
		if err := conn.SelectContext(ctx, &todos, q, args...); err != nil {
			return nil, storageErr(op, err)
		}
		return todos, nil
	})
}

// Get returns the todo with id, or a KindNotFound error.
func (r *Repository) Get(ctx context.Context, id int64) (model.Todo, error) {
	return r.get(ctx, "repository: get todo", id)
}

func (r *Repository) get(ctx context.Context, op string, id int64) (model.Todo, error) {
	q, args, err := r.sb.Select(model.TodoColumns...).
		From(model.TableTodos).
		Where(sq.Eq{model.ColumnID: id}).
		ToSql()
	if err != nil {
		return model.Todo{}, storageErr(op, fmt.Errorf("build query: %w", err))
	}
	return run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) (model.Todo, error) {
		return getOne(ctx, conn, op, q, args)
	})
}

// getOne scans a single row, turning an absent row into KindNotFound.
func getOne(ctx context.Context, conn *sqlx.Conn, op, q string, args []any) (model.Todo, error) {
	var t model.Todo
	if err := conn.GetContext(ctx, &t, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Todo{}, errs.NotFound(op)
		}
		return model.Todo{}, storageErr(op, err)
	}
	return t, nil
}

// Update applies the non-nil fields of cs and returns the updated row.
// Absent fields keep their stored value. An empty changeset reads the row back.
func (r *Repository) Update(ctx context.Context, id int64, cs model.Changeset) (model.Todo, error) {
	const op = "repository: update todo"
	if cs.Empty() {
		return r.get(ctx, op, id)
	}
	set := map[string]any{}
	if cs.Title != nil {
		set[model.ColumnTitle] = *cs.Title
	}
	if cs.Description != nil {
		set[model.ColumnDescription] = *cs.Description
	}
	q, args, err := r.sb.Update(model.TableTodos).
		SetMap(set).
		Where(sq.Eq{model.ColumnID: id}).
		Suffix(returningTodo).
		ToSql()
	if err != nil {
		return model.Todo{}, storageErr(op, fmt.Errorf("build query: %w", err))
	}
	return run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) (model.Todo, error) {
		return getOne(ctx, conn, op, q, args)
	})
}

// SetDone sets the done flag. Zero affected rows means the todo does not exist;
// the driver reports success in that case, so the count is checked explicitly.
func (r *Repository) SetDone(ctx context.Context, id int64, done bool) error {
	const op = "repository: set todo done"
	q, args, err := r.sb.Update(model.TableTodos).
		Set(model.ColumnDone, done).
		Where(sq.Eq{model.ColumnID: id}).
		ToSql()
	if err != nil {
		return storageErr(op, fmt.Errorf("build query: %w", err))
	}
	_, err = run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) (struct{}, error) {
		res, err := conn.ExecContext(ctx, q, args...)
		if err != nil {
			return struct{}{}, storageErr(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return struct{}{}, storageErr(op, fmt.Errorf("rows affected: %w", err))
		}
		if n == 0 {
			return struct{}{}, errs.NotFound(op)
		}
		return struct{}{}, nil
	})
	return err
}

// Delete removes the todo. Deleting an absent todo succeeds.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	const op = "repository: delete todo"
	q, args, err := r.sb.Delete(model.TableTodos).
		Where(sq.Eq{model.ColumnID: id}).
		ToSql()
	if err != nil {
		return storageErr(op, fmt.Errorf("build query: %w", err))
	}
	_, err = run(ctx, r, op, func(ctx context.Context, conn *sqlx.Conn) (struct{}, error) {
		if _, err := conn.ExecContext(ctx, q, args...); err != nil {
			return struct{}{}, storageErr(op, err)
		}
		return struct{}{}, nil
	})
	return err
}

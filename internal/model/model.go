// Package model defines shared data structures.
package model

// Todo is the single persisted resource. The same row doubles as a post through
// its Published flag.
type Todo struct {
	ID          int64   `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	Description *string `db:"description" json:"description"` // nullable
	Done        bool    `db:"done" json:"done"`
	Published   bool    `db:"published" json:"published"`
}

// NewTodo is the payload accepted on create. Done and Published always start false.
type NewTodo struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// Changeset is a partial update. Nil fields are left untouched.
type Changeset struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// Empty reports whether the changeset would not modify any column.
func (c Changeset) Empty() bool {
	return c.Title == nil && c.Description == nil
}

// Table and column names.
const (
	TableTodos = "todos"

	ColumnID          = "id"
	ColumnTitle       = "title"
	ColumnDescription = "description"
	ColumnDone        = "done"
	ColumnPublished   = "published"
)

// TodoColumns lists the columns in the order they are selected.
var TodoColumns = []string{ColumnID, ColumnTitle, ColumnDescription, ColumnDone, ColumnPublished}

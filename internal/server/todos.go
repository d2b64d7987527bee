package server

import (
	"net/http"
	"strconv"

	"github.com/bryan-buckman/todod/internal/model"
	"github.com/go-chi/chi/v5"
)

type createRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type doneRequest struct {
	Done *bool `json:"done"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	todos, err := s.repo.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todos)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.Title == nil {
		writeBadRequest(w, r, "title: expected a string")
		return
	}
	todo, err := s.repo.Create(r.Context(), model.NewTodo{Title: *req.Title, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todo)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	todo, err := s.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todo)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var cs model.Changeset
	if err := decodeJSON(r, &cs); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	todo, err := s.repo.Update(r.Context(), id, cs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, todo)
}

func (s *Server) handleDone(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	var req doneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.Done == nil {
		writeBadRequest(w, r, "done: expected a boolean")
		return
	}
	if err := s.repo.SetDone(r.Context(), id, *req.Done); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDelete answers 204 whether or not the todo existed.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// todoID parses the {id} segment. A non-integer id names no todo, so it is a 404.
func todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeHTTPError(w, todoNotFound)
		return 0, false
	}
	return id, true
}

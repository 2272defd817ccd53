package fakeapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/classroom-portal/authapi"
	"github.com/jrsteele09/classroom-portal/classes"
)

const defaultMaxStudents = 30

type classRepo struct {
	lock    sync.RWMutex
	classes map[string]*classes.Class
}

func newClassRepo() *classRepo {
	return &classRepo{classes: make(map[string]*classes.Class)}
}

func (cr *classRepo) listFor(teacherID string) []classes.Class {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	list := make([]classes.Class, 0)
	for _, c := range cr.classes {
		if c.TeacherID == teacherID && c.IsActive {
			list = append(list, *c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (cr *classRepo) get(teacherID, id string) (*classes.Class, bool) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	c, ok := cr.classes[id]
	if !ok || c.TeacherID != teacherID || !c.IsActive {
		return nil, false
	}
	class := *c
	return &class, true
}

func (a *API) listClasses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.classes.listFor(userIDFrom(r.Context())))
}

func (a *API) getClass(w http.ResponseWriter, r *http.Request) {
	class, ok := a.classes.get(userIDFrom(r.Context()), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Class not found")
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (a *API) createClass(w http.ResponseWriter, r *http.Request) {
	var req classes.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Class name is required")
		return
	}
	if req.MaxStudents <= 0 {
		req.MaxStudents = defaultMaxStudents
	}

	now := NowTimeFunc()
	class := classes.Class{
		ID:           uuid.NewString(),
		Name:         req.Name,
		TeacherID:    userIDFrom(r.Context()),
		SubjectID:    req.SubjectID,
		SchoolYear:   req.SchoolYear,
		Semester:     req.Semester,
		ClassSection: req.ClassSection,
		MaxStudents:  req.MaxStudents,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	a.classes.lock.Lock()
	a.classes.classes[class.ID] = &class
	a.classes.lock.Unlock()

	writeJSON(w, http.StatusCreated, class)
}

// deleteClass soft-deletes: the class stays stored but inactive.
func (a *API) deleteClass(w http.ResponseWriter, r *http.Request) {
	teacherID := userIDFrom(r.Context())
	id := r.PathValue("id")

	a.classes.lock.Lock()
	c, ok := a.classes.classes[id]
	found := ok && c.TeacherID == teacherID && c.IsActive
	if found {
		c.IsActive = false
		c.UpdatedAt = NowTimeFunc()
	}
	a.classes.lock.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Class not found")
		return
	}
	writeJSON(w, http.StatusOK, authapi.Envelope[any]{Success: true, Message: "Class deleted successfully"})
}

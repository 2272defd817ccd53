package classes

import "time"

// Class is a teacher's class section.
type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TeacherID    string    `json:"teacher_id"`
	SubjectID    string    `json:"subject_id"`
	SchoolYear   string    `json:"school_year"`
	Semester     string    `json:"semester"` // first, second
	ClassSection string    `json:"class_section"`
	MaxStudents  int       `json:"max_students"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SubjectName  string    `json:"subject_name,omitempty"`
	StudentCount int       `json:"student_count,omitempty"`
}

// CreateRequest is the payload for a new class.
type CreateRequest struct {
	Name         string `json:"name"`
	SubjectID    string `json:"subject_id"`
	SchoolYear   string `json:"school_year"`
	Semester     string `json:"semester"`
	ClassSection string `json:"class_section"`
	MaxStudents  int    `json:"max_students"`
}

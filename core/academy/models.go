package academy

import (
	"math"
	"time"

	"github.com/trezcool/shule/core/hierarchy"
)

// Material kinds
const (
	MaterialDocument = "document"
	MaterialVideo    = "video"
	MaterialLink     = "link"
)

var MaterialKinds = []string{MaterialDocument, MaterialVideo, MaterialLink}

// Node is any entity of the academic hierarchy: institution, course, level, programme,
// batch, class, subject or chapter.
type Node struct {
	ID        string         `json:"id"`
	Kind      hierarchy.Kind `json:"kind"`
	ParentID  string         `json:"parent_id,omitempty"`
	Name      string         `json:"name"`
	Code      string         `json:"code,omitempty"`
	Image     string         `json:"image,omitempty"`
	CreatedAt time.Time      `json:"created_at"` // UTC
	UpdatedAt time.Time      `json:"updated_at"` // UTC
}

func (n Node) Option() hierarchy.Option {
	return hierarchy.Option{ID: n.ID, Name: n.Name, Image: n.Image}
}

type NewNode struct {
	Kind     hierarchy.Kind `json:"kind" validate:"required"`
	ParentID string         `json:"parent_id"`
	Name     string         `json:"name" validate:"required,max=200"`
	Code     string         `json:"code" validate:"omitempty,max=20,alphanum_"`
	Image    string         `json:"image" validate:"omitempty,max=500"`
}

type UpdateNode struct {
	Name  string `json:"name" validate:"required,max=200"`
	Code  string `json:"code" validate:"omitempty,max=20,alphanum_"`
	Image string `json:"image" validate:"omitempty,max=500"`
}

// NodeFilter selects nodes. Zero fields match everything; Search matches name or code.
type NodeFilter struct {
	Kind     hierarchy.Kind
	ParentID string
	IDs      []string
	Search   string
}

// Mark is a student's score in a subject, recorded for a class.
type Mark struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	SubjectID string    `json:"subject_id"`
	Student   string    `json:"student"`
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"max_score"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Percentage is rounded to one decimal.
func (m Mark) Percentage() float64 {
	if m.MaxScore <= 0 {
		return 0
	}
	return math.Round(m.Score/m.MaxScore*1000) / 10
}

func (m Mark) Grade() string {
	switch p := m.Percentage(); {
	case p >= 80:
		return "A"
	case p >= 70:
		return "B"
	case p >= 60:
		return "C"
	case p >= 50:
		return "D"
	default:
		return "F"
	}
}

type NewMark struct {
	ClassID   string  `json:"class_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required"`
	Student   string  `json:"student" validate:"required,max=200"`
	Score     float64 `json:"score" validate:"gte=0"`
	MaxScore  float64 `json:"max_score" validate:"gt=0"`
}

type MarkFilter struct {
	ClassID   string
	SubjectID string
	Search    string
}

// Attendance records whether a student of a class was present on a day.
type Attendance struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	Student   string    `json:"student"`
	Day       time.Time `json:"day"`
	Present   bool      `json:"present"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewAttendance struct {
	ClassID string    `json:"class_id" validate:"required"`
	Student string    `json:"student" validate:"required,max=200"`
	Day     time.Time `json:"day" validate:"required"`
	Present bool      `json:"present"`
}

type AttendanceFilter struct {
	ClassID string
	Student string
	From    time.Time
	To      time.Time
	Search  string
}

// Material is a study resource attached to a chapter.
type Material struct {
	ID        string    `json:"id"`
	ChapterID string    `json:"chapter_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewMaterial struct {
	ChapterID string `json:"chapter_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Kind      string `json:"kind" validate:"required,oneof=document video link"`
	URL       string `json:"url" validate:"required,max=500"`
}

type MaterialFilter struct {
	ChapterID string
	Kind      string
	Search    string
}

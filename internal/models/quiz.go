package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question kinds supported by the grader.
const (
	QuestionKindSingle    = "single"
	QuestionKindMultiple  = "multiple"
	QuestionKindTrueFalse = "truefalse"
)

// Quiz is a reusable bank of questions owned by an admin.
type Quiz struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Questions   []Question
}

// Question belongs to a quiz. Options and CorrectKeys are stored as JSON
// arrays of option keys ("A", "B", ...) mapped to their display text.
type Question struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	QuizID      uint           `gorm:"not null;index" json:"quiz_id"`
	Position    int            `gorm:"not null" json:"position"`
	Kind        string         `gorm:"size:16;not null" json:"kind"`
	Text        string         `gorm:"type:text;not null" json:"text"`
	Options     datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectKeys datatypes.JSON `gorm:"type:json" json:"-"`
	Weight      float64        `gorm:"not null;default:1" json:"weight"`
	ImageURL    string         `gorm:"size:512" json:"image_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Quiz        Quiz           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

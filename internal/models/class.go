package models

import "time"

// Class is a group of candidates an admin assigns quizzes to.
type Class struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	InviteCode  string    `gorm:"size:16;uniqueIndex;not null" json:"invite_code"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Archived    bool      `gorm:"not null;default:false" json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Members     []ClassMembership
}

// ClassMembership links a candidate to a class.
type ClassMembership struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ClassID   uint      `gorm:"not null;uniqueIndex:idx_class_member" json:"class_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_class_member" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Class     Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}

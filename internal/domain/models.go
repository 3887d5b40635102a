package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// User status values.
const (
	UserDisabled = 0
	UserActive   = 1
)

// Role is a named permission set assigned to users.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          int    `json:"role_id" bun:"role_id,pk,autoincrement"`
	Name        string `json:"role_name" bun:"role_name,notnull,unique" validate:"required,max=50"`
	Description string `json:"description" bun:"description"`
}

// User is an account of the records system. Password is an opaque hash, or
// plaintext pending hashing by the caller.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int        `json:"user_id" bun:"user_id,pk,autoincrement"`
	Username  string     `json:"username" bun:"username,notnull,unique" validate:"required,max=50"`
	Password  string     `json:"password" bun:"password,notnull"`
	RealName  string     `json:"real_name" bun:"real_name"`
	Email     string     `json:"email" bun:"email"`
	Phone     string     `json:"phone" bun:"phone"`
	RoleID    int        `json:"role_id" bun:"role_id,notnull" validate:"gt=0"`
	Status    int        `json:"status" bun:"status,notnull"`
	CreatedAt *time.Time `json:"created_at,omitempty" bun:"created_at,nullzero,notnull,default:current_timestamp"`

	// Role is attached at read time and never written.
	Role *Role `json:"-" bun:"rel:belongs-to,join:role_id=role_id"`
}

// NeedsRefetch reports whether an update built from u would blank out
// required columns of a full-row replace.
func (u *User) NeedsRefetch() bool {
	return u.Username == "" || u.Password == ""
}

// FillBlanksFrom copies the persisted values of fields u left empty.
func (u *User) FillBlanksFrom(existing *User) {
	if existing == nil {
		return
	}
	if u.Username == "" {
		u.Username = existing.Username
	}
	if u.Password == "" {
		u.Password = existing.Password
	}
	if u.RealName == "" {
		u.RealName = existing.RealName
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.Phone == "" {
		u.Phone = existing.Phone
	}
	if u.RoleID == 0 {
		u.RoleID = existing.RoleID
	}
	if u.CreatedAt == nil {
		u.CreatedAt = existing.CreatedAt
	}
}

// WithoutPassword returns a copy of u safe to share with caches and views.
func (u User) WithoutPassword() User {
	u.Password = ""
	u.Role = nil
	return u
}

// QuestionCategory groups questions by subject.
type QuestionCategory struct {
	bun.BaseModel `bun:"table:question_categories,alias:c"`

	ID          int    `json:"category_id" bun:"category_id,pk,autoincrement"`
	Name        string `json:"category_name" bun:"category_name,notnull,unique" validate:"required,max=100"`
	Description string `json:"description" bun:"description"`
}

// QuestionDifficulty is a difficulty level label.
type QuestionDifficulty struct {
	bun.BaseModel `bun:"table:question_difficulties,alias:d"`

	ID          int    `json:"difficulty_id" bun:"difficulty_id,pk,autoincrement"`
	Level       string `json:"difficulty_level" bun:"difficulty_level,notnull" validate:"required,max=50"`
	Description string `json:"description" bun:"description"`
}

// Question is a bank entry with four option slots. Category, Difficulty and
// Creator are view-time hydration of the foreign keys and are never persisted.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int        `json:"question_id" bun:"question_id,pk,autoincrement"`
	Content       string     `json:"question_content" bun:"question_content,notnull" validate:"required"`
	Type          string     `json:"question_type" bun:"question_type,notnull" validate:"required"`
	OptionA       string     `json:"option_a" bun:"option_a"`
	OptionB       string     `json:"option_b" bun:"option_b"`
	OptionC       string     `json:"option_c" bun:"option_c"`
	OptionD       string     `json:"option_d" bun:"option_d"`
	CorrectAnswer string     `json:"correct_answer" bun:"correct_answer,notnull" validate:"required"`
	Explanation   string     `json:"explanation" bun:"explanation"`
	CategoryID    int        `json:"category_id" bun:"category_id,notnull" validate:"gt=0"`
	DifficultyID  int        `json:"difficulty_id" bun:"difficulty_id,notnull" validate:"gt=0"`
	CreatorID     int        `json:"creator_id" bun:"creator_id,notnull" validate:"gt=0"`
	CreatedAt     *time.Time `json:"created_at,omitempty" bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty" bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Category   *QuestionCategory   `json:"-" bun:"rel:belongs-to,join:category_id=category_id"`
	Difficulty *QuestionDifficulty `json:"-" bun:"rel:belongs-to,join:difficulty_id=difficulty_id"`
	Creator    *User               `json:"-" bun:"rel:belongs-to,join:creator_id=user_id"`
}

// QuestionFilter narrows a question search. Nil pointers and an empty Keyword
// mean "no constraint"; they never become equality-with-empty clauses.
type QuestionFilter struct {
	Keyword      string
	CategoryID   *int
	DifficultyID *int
	Type         *string
}

// IntPtr is a convenience for building filters.
func IntPtr(v int) *int { return &v }

// StringPtr is a convenience for building filters.
func StringPtr(v string) *string { return &v }

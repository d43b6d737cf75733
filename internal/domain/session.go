package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionKind string

const (
	SessionKindCourse   SessionKind = "course"
	SessionKindExchange SessionKind = "exchange"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// SessionCore holds the fields shared by courses and exchanges. A zero ID
// means the row has not been persisted yet.
type SessionCore struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	Kind          SessionKind `json:"kind" gorm:"type:varchar(16);not null"`
	DateSession   string      `json:"dateSession" gorm:"type:varchar(10);not null;index"`
	StartTime     string      `json:"startTime" gorm:"type:varchar(5);not null"`
	EndTime       string      `json:"endTime" gorm:"type:varchar(5);not null"`
	Description   string      `json:"description"`
	RateID        *uint       `json:"rateId"`
	SkillTaughtID uint        `json:"skillTaughtId" gorm:"not null;index"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`

	SkillTaught *Skill `json:"skillTaught,omitempty" gorm:"foreignKey:SkillTaughtID"`
}

func (SessionCore) TableName() string {
	return "sessions"
}

func (s *SessionCore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *SessionCore) Persisted() bool {
	return s.ID != uuid.Nil
}

// Validate checks the schedule: date and clock formats, and that the
// session ends after it starts.
func (s *SessionCore) Validate() error {
	if s.DateSession == "" || s.StartTime == "" || s.EndTime == "" {
		return ErrInvalidSession
	}
	if _, err := time.Parse(DateLayout, s.DateSession); err != nil {
		return ErrInvalidSession
	}
	start, err := time.Parse(ClockLayout, s.StartTime)
	if err != nil {
		return ErrInvalidSession
	}
	end, err := time.Parse(ClockLayout, s.EndTime)
	if err != nil {
		return ErrInvalidSession
	}
	if !end.After(start) {
		return ErrInvalidSession
	}
	return nil
}

// EndsAt combines the session date and end time in loc.
func (s *SessionCore) EndsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, s.DateSession+" "+s.EndTime, loc)
}

func (s *SessionCore) Expired(now time.Time) bool {
	end, err := s.EndsAt(now.Location())
	if err != nil {
		return true
	}
	return !end.After(now)
}

type Course struct {
	SessionID    uuid.UUID `json:"sessionId" gorm:"type:uuid;primaryKey"`
	LocationID   uint      `json:"locationId" gorm:"not null"`
	HostID       uuid.UUID `json:"hostId" gorm:"type:uuid;not null;index"`
	MaxAttendees int       `json:"maxAttendees" gorm:"not null;default:0;check:max_attendees >= 0"`

	// AttendeeCount is filled by listing queries only.
	AttendeeCount int64 `json:"attendeeCount" gorm:"->;-:migration"`

	Session     SessionCore  `json:"session" gorm:"foreignKey:SessionID"`
	Location    *Location    `json:"location,omitempty" gorm:"foreignKey:LocationID"`
	Host        *User        `json:"host,omitempty" gorm:"foreignKey:HostID"`
	Attendances []Attendance `json:"-" gorm:"foreignKey:CourseID"`
}

func (c *Course) IsHost(userID uuid.UUID) bool {
	return c.HostID == userID
}

type Attendance struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	CourseID  uuid.UUID `json:"courseId" gorm:"type:uuid;not null;uniqueIndex:idx_attendance_course_user"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_attendance_course_user;index"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

type Exchange struct {
	SessionID        uuid.UUID  `json:"sessionId" gorm:"type:uuid;primaryKey"`
	SkillRequestedID uint       `json:"skillRequestedId" gorm:"not null"`
	RequesterID      uuid.UUID  `json:"requesterId" gorm:"type:uuid;not null;index"`
	AccepterID       *uuid.UUID `json:"accepterId" gorm:"type:uuid;index"`

	Session        SessionCore `json:"session" gorm:"foreignKey:SessionID"`
	SkillRequested *Skill      `json:"skillRequested,omitempty" gorm:"foreignKey:SkillRequestedID"`
	Requester      *User       `json:"requester,omitempty" gorm:"foreignKey:RequesterID"`
	Accepter       *User       `json:"accepter,omitempty" gorm:"foreignKey:AccepterID"`
}

func (e *Exchange) Accepted() bool {
	return e.AccepterID != nil
}

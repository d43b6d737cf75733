package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/skillswap/internal/domain"
	repoPostgres "github.com/dom/skillswap/internal/repository/postgres"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	displayName string
	password    string
	balance     int64
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	return &UserBuilder{
		displayName: fmt.Sprintf("testuser_%s", uuid.New().String()[:8]),
		password:    "testpassword123",
		balance:     50,
	}
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithBalance sets the starting token balance
func (b *UserBuilder) WithBalance(balance int64) *UserBuilder {
	b.balance = balance
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		Balance:      b.balance,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		Balance     int64  `json:"balance"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token.
// The user starts with the server's default balance.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		DisplayName: authResp.User.DisplayName,
		Balance:     authResp.User.Balance,
	}

	return user, authResp.AccessToken
}

// SeedCategory returns the named category, creating it if needed.
func SeedCategory(t *testing.T, db *gorm.DB, name string) *domain.Category {
	t.Helper()

	category := &domain.Category{}
	if err := db.Where(domain.Category{Name: name}).FirstOrCreate(category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	return category
}

// SeedSkill returns the named skill in the "Informatique" category.
func SeedSkill(t *testing.T, db *gorm.DB, name string) *domain.Skill {
	t.Helper()

	category := SeedCategory(t, db, "Informatique")
	skill := &domain.Skill{}
	if err := db.Where(domain.Skill{Name: name, CategoryID: category.ID}).FirstOrCreate(skill).Error; err != nil {
		t.Fatalf("failed to seed skill: %v", err)
	}
	return skill
}

// Tomorrow returns tomorrow's date in the session date layout.
func Tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format(domain.DateLayout)
}

// Yesterday returns yesterday's date in the session date layout.
func Yesterday() string {
	return time.Now().AddDate(0, 0, -1).Format(domain.DateLayout)
}

// CourseBuilder creates test courses with a builder pattern
type CourseBuilder struct {
	host         *domain.User
	maxAttendees int
	date         string
	start        string
	end          string
	skill        string
	attendees    []*domain.User
}

// NewCourseBuilder creates a course tomorrow from 10:00 to 12:00 with room for 5
func NewCourseBuilder() *CourseBuilder {
	return &CourseBuilder{
		maxAttendees: 5,
		date:         Tomorrow(),
		start:        "10:00",
		end:          "12:00",
		skill:        "Go",
	}
}

func (b *CourseBuilder) WithHost(user *domain.User) *CourseBuilder {
	b.host = user
	return b
}

func (b *CourseBuilder) WithMaxAttendees(max int) *CourseBuilder {
	b.maxAttendees = max
	return b
}

func (b *CourseBuilder) WithSchedule(date, start, end string) *CourseBuilder {
	b.date = date
	b.start = start
	b.end = end
	return b
}

func (b *CourseBuilder) WithSkill(name string) *CourseBuilder {
	b.skill = name
	return b
}

// WithAttendees registers users directly, without charging them
func (b *CourseBuilder) WithAttendees(users ...*domain.User) *CourseBuilder {
	b.attendees = append(b.attendees, users...)
	return b
}

// Build creates the course in the database. A host is created when none was set.
func (b *CourseBuilder) Build(t *testing.T, db *gorm.DB) *domain.Course {
	t.Helper()

	if b.host == nil {
		b.host, _ = NewUserBuilder().Build(t, db)
	}

	skill := SeedSkill(t, db, b.skill)
	location := &domain.Location{Address: "1 rue de la Paix", ZipCode: "75002", City: "Paris"}
	if err := db.Where(*location).FirstOrCreate(location).Error; err != nil {
		t.Fatalf("failed to seed location: %v", err)
	}

	course := &domain.Course{
		Session: domain.SessionCore{
			DateSession:   b.date,
			StartTime:     b.start,
			EndTime:       b.end,
			Description:   "test course",
			SkillTaughtID: skill.ID,
		},
		LocationID:   location.ID,
		HostID:       b.host.ID,
		MaxAttendees: b.maxAttendees,
	}

	ctx := context.Background()
	if err := repoPostgres.NewCourseRepository(db).Create(ctx, course); err != nil {
		t.Fatalf("failed to create course: %v", err)
	}

	attendance := repoPostgres.NewAttendanceRepository(db)
	for _, u := range b.attendees {
		if err := attendance.Create(ctx, &domain.Attendance{CourseID: course.SessionID, UserID: u.ID}); err != nil {
			t.Fatalf("failed to add attendee: %v", err)
		}
	}

	return course
}

// ExchangeBuilder creates test exchanges with a builder pattern
type ExchangeBuilder struct {
	requester *domain.User
	accepter  *domain.User
	date      string
	start     string
	end       string
	taught    string
	requested string
}

// NewExchangeBuilder creates an open exchange tomorrow from 14:00 to 15:00
func NewExchangeBuilder() *ExchangeBuilder {
	return &ExchangeBuilder{
		date:      Tomorrow(),
		start:     "14:00",
		end:       "15:00",
		taught:    "Guitare",
		requested: "Go",
	}
}

func (b *ExchangeBuilder) WithRequester(user *domain.User) *ExchangeBuilder {
	b.requester = user
	return b
}

func (b *ExchangeBuilder) WithAccepter(user *domain.User) *ExchangeBuilder {
	b.accepter = user
	return b
}

func (b *ExchangeBuilder) WithSchedule(date, start, end string) *ExchangeBuilder {
	b.date = date
	b.start = start
	b.end = end
	return b
}

func (b *ExchangeBuilder) WithSkills(taught, requested string) *ExchangeBuilder {
	b.taught = taught
	b.requested = requested
	return b
}

// Build creates the exchange in the database. A requester is created when none was set.
func (b *ExchangeBuilder) Build(t *testing.T, db *gorm.DB) *domain.Exchange {
	t.Helper()

	if b.requester == nil {
		b.requester, _ = NewUserBuilder().Build(t, db)
	}

	exchange := &domain.Exchange{
		Session: domain.SessionCore{
			DateSession:   b.date,
			StartTime:     b.start,
			EndTime:       b.end,
			Description:   "test exchange",
			SkillTaughtID: SeedSkill(t, db, b.taught).ID,
		},
		SkillRequestedID: SeedSkill(t, db, b.requested).ID,
		RequesterID:      b.requester.ID,
	}
	if b.accepter != nil {
		exchange.AccepterID = &b.accepter.ID
	}

	if err := repoPostgres.NewExchangeRepository(db).Create(context.Background(), exchange); err != nil {
		t.Fatalf("failed to create exchange: %v", err)
	}

	return exchange
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

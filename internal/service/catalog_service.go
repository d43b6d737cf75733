package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogService struct {
	tx             repository.TxManager
	courseRepo     repository.CourseRepository
	exchangeRepo   repository.ExchangeRepository
	attendanceRepo repository.AttendanceRepository
	categoryRepo   repository.CategoryRepository
	skillRepo      repository.SkillRepository
	locationRepo   repository.LocationRepository
	enrollment     *EnrollmentService
	notifier       Notifier
	now            func() time.Time
}

func NewCatalogService(repos *repository.Repositories, enrollment *EnrollmentService, notifier Notifier) *CatalogService {
	return &CatalogService{
		tx:             repos.Tx,
		courseRepo:     repos.Course,
		exchangeRepo:   repos.Exchange,
		attendanceRepo: repos.Attendance,
		categoryRepo:   repos.Category,
		skillRepo:      repos.Skill,
		locationRepo:   repos.Location,
		enrollment:     enrollment,
		notifier:       notifier,
		now:            time.Now,
	}
}

// SetClock replaces the time source used to decide which sessions have ended.
func (s *CatalogService) SetClock(now func() time.Time) {
	s.now = now
}

type SkillInput struct {
	Name       string `json:"name"`
	CategoryID uint   `json:"categoryId"`
}

type LocationInput struct {
	Address string `json:"address"`
	ZipCode string `json:"zipCode"`
	City    string `json:"city"`
}

type SessionInput struct {
	DateSession string     `json:"dateSession"`
	StartTime   string     `json:"startTime"`
	EndTime     string     `json:"endTime"`
	Description string     `json:"description"`
	RateID      *uint      `json:"rateId"`
	SkillTaught SkillInput `json:"skillTaught"`
}

type CourseInput struct {
	SessionInput
	Location     LocationInput `json:"location"`
	MaxAttendees int           `json:"maxAttendees"`
}

type ExchangeInput struct {
	SessionInput
	SkillRequested SkillInput `json:"skillRequested"`
}

type MySessions struct {
	Hosted    []*domain.Course   `json:"hosted"`
	Attended  []*domain.Course   `json:"attended"`
	Requested []*domain.Exchange `json:"requested"`
	Accepted  []*domain.Exchange `json:"accepted"`
}

func (in SessionInput) core() domain.SessionCore {
	return domain.SessionCore{
		DateSession: strings.TrimSpace(in.DateSession),
		StartTime:   strings.TrimSpace(in.StartTime),
		EndTime:     strings.TrimSpace(in.EndTime),
		Description: strings.TrimSpace(in.Description),
		RateID:      in.RateID,
	}
}

func (in SkillInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || in.CategoryID == 0 {
		return domain.ErrInvalidSkill
	}
	return nil
}

func (in LocationInput) validate() error {
	if strings.TrimSpace(in.Address) == "" || strings.TrimSpace(in.ZipCode) == "" || strings.TrimSpace(in.City) == "" {
		return domain.ErrInvalidLocation
	}
	return nil
}

func (in CourseInput) validate() error {
	core := in.core()
	if err := core.Validate(); err != nil {
		return err
	}
	if err := in.SkillTaught.validate(); err != nil {
		return err
	}
	if err := in.Location.validate(); err != nil {
		return err
	}
	if in.MaxAttendees < 0 {
		return domain.ErrInvalidCapacity
	}
	return nil
}

func (in ExchangeInput) validate() error {
	core := in.core()
	if err := core.Validate(); err != nil {
		return err
	}
	if err := in.SkillTaught.validate(); err != nil {
		return err
	}
	return in.SkillRequested.validate()
}

func (s *CatalogService) CreateCourse(ctx context.Context, hostID uuid.UUID, input CourseInput) (*domain.Course, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var course *domain.Course
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		skill, err := s.resolveSkill(ctx, input.SkillTaught)
		if err != nil {
			return err
		}
		location, err := s.locationRepo.GetOrCreate(ctx, &domain.Location{
			Address: strings.TrimSpace(input.Location.Address),
			ZipCode: strings.TrimSpace(input.Location.ZipCode),
			City:    strings.TrimSpace(input.Location.City),
		})
		if err != nil {
			return fmt.Errorf("resolve location: %w", err)
		}

		course = &domain.Course{
			Session:      input.core(),
			LocationID:   location.ID,
			HostID:       hostID,
			MaxAttendees: input.MaxAttendees,
		}
		course.Session.SkillTaughtID = skill.ID
		if err := s.courseRepo.Create(ctx, course); err != nil {
			return fmt.Errorf("create course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCourse(ctx, course.SessionID)
}

// UpdateCourse rewrites the schedule, skill, location and capacity. Capacity
// cannot drop below the number of attendees already registered.
func (s *CatalogService) UpdateCourse(ctx context.Context, userID, courseID uuid.UUID, input CourseInput) (*domain.Course, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.courseRepo.GetForUpdate(ctx, courseID)
		if err != nil {
			return translateNotFound(err, domain.ErrCourseNotFound)
		}
		if !locked.IsHost(userID) {
			return domain.ErrNotSessionOwner
		}

		count, err := s.attendanceRepo.Count(ctx, courseID)
		if err != nil {
			return fmt.Errorf("count attendees: %w", err)
		}
		if int64(input.MaxAttendees) < count {
			return domain.ErrInvalidCapacity
		}

		skill, err := s.resolveSkill(ctx, input.SkillTaught)
		if err != nil {
			return err
		}
		location, err := s.locationRepo.GetOrCreate(ctx, &domain.Location{
			Address: strings.TrimSpace(input.Location.Address),
			ZipCode: strings.TrimSpace(input.Location.ZipCode),
			City:    strings.TrimSpace(input.Location.City),
		})
		if err != nil {
			return fmt.Errorf("resolve location: %w", err)
		}

		course := &domain.Course{
			SessionID:    courseID,
			Session:      input.core(),
			LocationID:   location.ID,
			HostID:       locked.HostID,
			MaxAttendees: input.MaxAttendees,
		}
		course.Session.ID = courseID
		course.Session.SkillTaughtID = skill.ID
		if err := s.courseRepo.Update(ctx, course); err != nil {
			return fmt.Errorf("update course: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(courseID, EventSessionUpdated)
	return s.GetCourse(ctx, courseID)
}

// DeleteCourse removes the course with its roster and session row.
func (s *CatalogService) DeleteCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := s.courseRepo.GetForUpdate(ctx, courseID)
		if err != nil {
			return translateNotFound(err, domain.ErrCourseNotFound)
		}
		if !course.IsHost(userID) {
			return domain.ErrNotSessionOwner
		}
		if err := s.courseRepo.Delete(ctx, courseID); err != nil {
			return translateNotFound(err, domain.ErrCourseNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(courseID, EventSessionDeleted)
	return nil
}

// LeaveCourse takes the user off the roster. Tokens paid to join are not
// refunded. Leaving a course the user never joined is not an error.
func (s *CatalogService) LeaveCourse(ctx context.Context, userID, courseID uuid.UUID) error {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return err
	}
	if err := s.enrollment.RemoveAttendee(ctx, courseID, userID); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifySession(courseID, EventAttendeeLeft, map[string]any{
			"sessionId": courseID,
			"userId":    userID,
		})
	}
	return nil
}

func (s *CatalogService) GetCourse(ctx context.Context, courseID uuid.UUID) (*domain.Course, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, translateNotFound(err, domain.ErrCourseNotFound)
	}
	return course, nil
}

func (s *CatalogService) CreateExchange(ctx context.Context, requesterID uuid.UUID, input ExchangeInput) (*domain.Exchange, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var exchange *domain.Exchange
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taught, err := s.resolveSkill(ctx, input.SkillTaught)
		if err != nil {
			return err
		}
		requested, err := s.resolveSkill(ctx, input.SkillRequested)
		if err != nil {
			return err
		}

		exchange = &domain.Exchange{
			Session:          input.core(),
			SkillRequestedID: requested.ID,
			RequesterID:      requesterID,
		}
		exchange.Session.SkillTaughtID = taught.ID
		if err := s.exchangeRepo.Create(ctx, exchange); err != nil {
			return fmt.Errorf("create exchange: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetExchange(ctx, exchange.SessionID)
}

// UpdateExchange is refused once the exchange has been accepted.
func (s *CatalogService) UpdateExchange(ctx context.Context, userID, exchangeID uuid.UUID, input ExchangeInput) (*domain.Exchange, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.ownedOpenExchange(ctx, userID, exchangeID)
		if err != nil {
			return err
		}

		taught, err := s.resolveSkill(ctx, input.SkillTaught)
		if err != nil {
			return err
		}
		requested, err := s.resolveSkill(ctx, input.SkillRequested)
		if err != nil {
			return err
		}

		exchange := &domain.Exchange{
			SessionID:        exchangeID,
			Session:          input.core(),
			SkillRequestedID: requested.ID,
			RequesterID:      current.RequesterID,
		}
		exchange.Session.ID = exchangeID
		exchange.Session.SkillTaughtID = taught.ID
		if err := s.exchangeRepo.Update(ctx, exchange); err != nil {
			return fmt.Errorf("update exchange: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(exchangeID, EventSessionUpdated)
	return s.GetExchange(ctx, exchangeID)
}

// DeleteExchange removes the exchange and its session row. Accepted exchanges
// have already paid out and are kept.
func (s *CatalogService) DeleteExchange(ctx context.Context, userID, exchangeID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.ownedOpenExchange(ctx, userID, exchangeID); err != nil {
			return err
		}
		if err := s.exchangeRepo.Delete(ctx, exchangeID); err != nil {
			return translateNotFound(err, domain.ErrExchangeNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(exchangeID, EventSessionDeleted)
	return nil
}

func (s *CatalogService) GetExchange(ctx context.Context, exchangeID uuid.UUID) (*domain.Exchange, error) {
	exchange, err := s.exchangeRepo.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, translateNotFound(err, domain.ErrExchangeNotFound)
	}
	return exchange, nil
}

// AvailableCourses lists courses the viewer can still join: not ended, not
// hosted or attended by the viewer, and not full.
func (s *CatalogService) AvailableCourses(ctx context.Context, viewerID uuid.UUID, skill string) ([]*domain.Course, error) {
	filter := s.filter(viewerID, skill)
	s.countSearch(ctx, filter.SkillName)
	return s.courseRepo.ListAvailable(ctx, filter)
}

// OpenExchanges lists unaccepted exchanges proposed by other users.
func (s *CatalogService) OpenExchanges(ctx context.Context, viewerID uuid.UUID, skill string) ([]*domain.Exchange, error) {
	filter := s.filter(viewerID, skill)
	s.countSearch(ctx, filter.SkillName)
	return s.exchangeRepo.ListOpen(ctx, filter)
}

func (s *CatalogService) MySessions(ctx context.Context, viewerID uuid.UUID) (*MySessions, error) {
	filter := s.filter(viewerID, "")

	hosted, err := s.courseRepo.ListByHost(ctx, filter)
	if err != nil {
		return nil, err
	}
	attended, err := s.courseRepo.ListByAttendee(ctx, filter)
	if err != nil {
		return nil, err
	}
	requested, err := s.exchangeRepo.ListByRequester(ctx, filter)
	if err != nil {
		return nil, err
	}
	accepted, err := s.exchangeRepo.ListByAccepter(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &MySessions{
		Hosted:    hosted,
		Attended:  attended,
		Requested: requested,
		Accepted:  accepted,
	}, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.GetAll(ctx)
}

// EnsureCategories creates any missing category from names.
func (s *CatalogService) EnsureCategories(ctx context.Context, names []string) error {
	existing, err := s.categoryRepo.GetAll(ctx)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}
	for _, name := range names {
		if have[name] {
			continue
		}
		if err := s.categoryRepo.Create(ctx, &domain.Category{Name: name}); err != nil {
			return fmt.Errorf("create category %q: %w", name, err)
		}
	}
	return nil
}

func (s *CatalogService) ownedOpenExchange(ctx context.Context, userID, exchangeID uuid.UUID) (*domain.Exchange, error) {
	exchange, err := s.exchangeRepo.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, translateNotFound(err, domain.ErrExchangeNotFound)
	}
	if exchange.RequesterID != userID {
		return nil, domain.ErrNotSessionOwner
	}
	if exchange.Accepted() {
		return nil, domain.ErrExchangeLocked
	}
	return exchange, nil
}

func (s *CatalogService) resolveSkill(ctx context.Context, input SkillInput) (*domain.Skill, error) {
	if _, err := s.categoryRepo.GetByID(ctx, input.CategoryID); err != nil {
		return nil, translateNotFound(err, domain.ErrCategoryNotFound)
	}
	skill, err := s.skillRepo.GetOrCreate(ctx, strings.TrimSpace(input.Name), input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("resolve skill: %w", err)
	}
	return skill, nil
}

func (s *CatalogService) filter(viewerID uuid.UUID, skill string) repository.SessionFilter {
	now := s.now()
	return repository.SessionFilter{
		ViewerID:  viewerID,
		SkillName: strings.TrimSpace(skill),
		Today:     now.Format(domain.DateLayout),
		Clock:     now.Format(domain.ClockLayout),
	}
}

func (s *CatalogService) countSearch(ctx context.Context, skill string) {
	if skill == "" {
		return
	}
	if err := s.skillRepo.IncrementSearchCounter(ctx, skill); err != nil {
		log.Printf("WARN [catalog] increment search counter for %q: %v", skill, err)
	}
}

func (s *CatalogService) notify(sessionID uuid.UUID, event string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifySession(sessionID, event, map[string]any{"sessionId": sessionID})
}

func translateNotFound(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

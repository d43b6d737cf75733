package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/skillswap/internal/domain"
	"github.com/dom/skillswap/internal/repository"
	"github.com/dom/skillswap/internal/repository/postgres"
	"github.com/dom/skillswap/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func nowFilter(viewer uuid.UUID, skill string) repository.SessionFilter {
	now := time.Now()
	return repository.SessionFilter{
		ViewerID:  viewer,
		SkillName: skill,
		Today:     now.Format(domain.DateLayout),
		Clock:     now.Format(domain.ClockLayout),
	}
}

func courseIDs(courses []*domain.Course) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.SessionID)
	}
	return ids
}

func TestCourseRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCourseRepository(testDB.DB)
	ctx := context.Background()

	host, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	attendee, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	course := testutil.NewCourseBuilder().
		WithHost(host).
		WithMaxAttendees(3).
		WithSkill("Rust").
		WithAttendees(attendee).
		Build(t, testDB.DB)

	got, err := repo.GetByID(ctx, course.SessionID)
	require.NoError(t, err)

	assert.Equal(t, course.SessionID, got.Session.ID)
	assert.Equal(t, domain.SessionKindCourse, got.Session.Kind)
	assert.Equal(t, host.ID, got.HostID)
	assert.Equal(t, 3, got.MaxAttendees)
	assert.Equal(t, int64(1), got.AttendeeCount)
	require.NotNil(t, got.Session.SkillTaught)
	assert.Equal(t, "Rust", got.Session.SkillTaught.Name)
	require.NotNil(t, got.Session.SkillTaught.Category)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Paris", got.Location.City)
	require.NotNil(t, got.Host)
	assert.Equal(t, host.DisplayName, got.Host.DisplayName)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCourseRepository_Update(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCourseRepository(testDB.DB)
	ctx := context.Background()

	course := testutil.NewCourseBuilder().Build(t, testDB.DB)

	course.Session.ID = course.SessionID
	course.Session.StartTime = "09:00"
	course.Session.Description = "rescheduled"
	course.MaxAttendees = 8
	require.NoError(t, repo.Update(ctx, course))

	got, err := repo.GetByID(ctx, course.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Session.StartTime)
	assert.Equal(t, "rescheduled", got.Session.Description)
	assert.Equal(t, 8, got.MaxAttendees)
}

func TestCourseRepository_DeleteCascades(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCourseRepository(testDB.DB)
	ctx := context.Background()

	attendee, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	course := testutil.NewCourseBuilder().WithAttendees(attendee).Build(t, testDB.DB)

	require.NoError(t, repo.Delete(ctx, course.SessionID))

	testutil.AssertAttendeeCount(t, testDB.DB, course.SessionID, 0)
	var sessions int64
	require.NoError(t, testDB.DB.Model(&domain.SessionCore{}).Where("id = ?", course.SessionID).Count(&sessions).Error)
	assert.Zero(t, sessions)

	assert.ErrorIs(t, repo.Delete(ctx, course.SessionID), gorm.ErrRecordNotFound)
}

func TestCourseRepository_GetForUpdate(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	course := testutil.NewCourseBuilder().WithMaxAttendees(2).Build(t, testDB.DB)

	err := repos.Tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := repos.Course.GetForUpdate(ctx, course.SessionID)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, locked.MaxAttendees)
		return nil
	})
	require.NoError(t, err)
}

func TestCourseRepository_ListAvailable(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCourseRepository(testDB.DB)
	ctx := context.Background()

	viewer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	open := testutil.NewCourseBuilder().WithSkill("Python").Build(t, testDB.DB)
	hosted := testutil.NewCourseBuilder().WithHost(viewer).Build(t, testDB.DB)
	attended := testutil.NewCourseBuilder().WithAttendees(viewer).Build(t, testDB.DB)
	full := testutil.NewCourseBuilder().WithMaxAttendees(1).WithAttendees(other).Build(t, testDB.DB)
	past := testutil.NewCourseBuilder().WithSchedule(testutil.Yesterday(), "10:00", "12:00").Build(t, testDB.DB)
	guitar := testutil.NewCourseBuilder().WithSkill("Guitare").Build(t, testDB.DB)

	t.Run("no filter", func(t *testing.T) {
		courses, err := repo.ListAvailable(ctx, nowFilter(viewer.ID, ""))
		require.NoError(t, err)

		ids := courseIDs(courses)
		assert.ElementsMatch(t, []uuid.UUID{open.SessionID, guitar.SessionID}, ids)
		assert.NotContains(t, ids, hosted.SessionID)
		assert.NotContains(t, ids, attended.SessionID)
		assert.NotContains(t, ids, full.SessionID)
		assert.NotContains(t, ids, past.SessionID)
	})

	t.Run("skill filter is case insensitive", func(t *testing.T) {
		courses, err := repo.ListAvailable(ctx, nowFilter(viewer.ID, "pyth"))
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{open.SessionID}, courseIDs(courses))
	})
}

func TestCourseRepository_ListByHostAndAttendee(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewCourseRepository(testDB.DB)
	ctx := context.Background()

	viewer, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	hosted := testutil.NewCourseBuilder().WithHost(viewer).Build(t, testDB.DB)
	testutil.NewCourseBuilder().WithHost(viewer).WithSchedule(testutil.Yesterday(), "08:00", "09:00").Build(t, testDB.DB)
	attended := testutil.NewCourseBuilder().WithAttendees(viewer).Build(t, testDB.DB)
	testutil.NewCourseBuilder().Build(t, testDB.DB)

	byHost, err := repo.ListByHost(ctx, nowFilter(viewer.ID, ""))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{hosted.SessionID}, courseIDs(byHost))

	byAttendee, err := repo.ListByAttendee(ctx, nowFilter(viewer.ID, ""))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{attended.SessionID}, courseIDs(byAttendee))
	assert.Equal(t, int64(1), byAttendee[0].AttendeeCount)
}

func TestAttendanceRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewAttendanceRepository(testDB.DB)
	ctx := context.Background()

	first, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	second, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	course := testutil.NewCourseBuilder().Build(t, testDB.DB)

	require.NoError(t, repo.Create(ctx, &domain.Attendance{CourseID: course.SessionID, UserID: first.ID}))
	require.NoError(t, repo.Create(ctx, &domain.Attendance{CourseID: course.SessionID, UserID: second.ID}))

	err := repo.Create(ctx, &domain.Attendance{CourseID: course.SessionID, UserID: first.ID})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	count, err := repo.Count(ctx, course.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	exists, err := repo.Exists(ctx, course.SessionID, first.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	users, err := repo.ListUsers(ctx, course.SessionID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, first.ID, users[0].ID)
	assert.Equal(t, second.ID, users[1].ID)

	require.NoError(t, repo.Delete(ctx, course.SessionID, first.ID))
	require.NoError(t, repo.Delete(ctx, course.SessionID, first.ID))

	exists, err = repo.Exists(ctx, course.SessionID, first.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

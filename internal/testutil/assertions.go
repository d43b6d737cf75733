package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/dom/skillswap/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text in this API
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertBalance reloads the user and checks the token balance
func AssertBalance(t *testing.T, db *gorm.DB, userID uuid.UUID, expected int64) {
	t.Helper()

	var user domain.User
	require.NoError(t, db.First(&user, "id = ?", userID).Error, "failed to load user %s", userID)
	assert.Equal(t, expected, user.Balance, "unexpected balance for user %s", userID)
}

// AssertLedgerCount checks how many ledger entries the user has
func AssertLedgerCount(t *testing.T, db *gorm.DB, userID uuid.UUID, expected int64) {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, expected, count, "unexpected ledger entry count for user %s", userID)
}

// AssertAttendeeCount checks the size of a course roster
func AssertAttendeeCount(t *testing.T, db *gorm.DB, courseID uuid.UUID, expected int64) {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&domain.Attendance{}).Where("course_id = ?", courseID).Count(&count).Error)
	assert.Equal(t, expected, count, "unexpected attendee count for course %s", courseID)
}

// AssertOutcome decodes a join outcome and checks its status and code
func AssertOutcome(t *testing.T, resp *http.Response, status domain.OutcomeStatus, code string) domain.Outcome {
	t.Helper()

	var outcome domain.Outcome
	AssertJSONResponse(t, resp, &outcome)
	assert.Equal(t, status, outcome.Status, "unexpected outcome status")
	assert.Equal(t, code, outcome.Code, "unexpected outcome code")
	return outcome
}

// RequireNoError fails immediately if err is not nil
func RequireNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoError(t, err, msgAndArgs...)
}

// RequireEqual fails immediately if expected != actual
func RequireEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, expected, actual, msgAndArgs...)
}

// AssertEqual checks if expected == actual
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, expected, actual, msgAndArgs...)
}

// AssertNotNil checks if object is not nil
func AssertNotNil(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	assert.NotNil(t, object, msgAndArgs...)
}

// AssertNil checks if object is nil
func AssertNil(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Nil(t, object, msgAndArgs...)
}

// AssertTrue checks if value is true
func AssertTrue(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, value, msgAndArgs...)
}

// AssertFalse checks if value is false
func AssertFalse(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	assert.False(t, value, msgAndArgs...)
}

// AssertLen checks if object has expected length
func AssertLen(t *testing.T, object interface{}, length int, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Len(t, object, length, msgAndArgs...)
}

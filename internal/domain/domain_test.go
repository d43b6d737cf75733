package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrCourseNotFound, KindNotFound},
		{fmt.Errorf("join: %w", ErrExchangeNotFound), KindNotFound},
		{ErrCourseFull, KindCapacityExceeded},
		{ErrAlreadyEnrolled, KindAlreadyRegistered},
		{ErrAlreadyAccepted, KindAlreadyAccepted},
		{ErrInsufficientFunds, KindInsufficientFunds},
		{ErrHostCannotAttend, KindForbidden},
		{ErrCannotAcceptOwnExchange, KindForbidden},
		{ErrExchangeLocked, KindForbidden},
		{ErrInvalidCapacity, KindInvalid},
		{errors.Join(errors.New("rollback failed"), ErrCourseFull), KindCapacityExceeded},
		{errors.New("connection reset"), KindPersistenceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.Equal(t, "persistence_failure", KindOf(nil).String())
}

func TestSessionCore_Validate(t *testing.T) {
	tests := []struct {
		name    string
		session SessionCore
		wantErr bool
	}{
		{"valid", SessionCore{DateSession: "2030-01-15", StartTime: "10:00", EndTime: "12:00"}, false},
		{"missing date", SessionCore{StartTime: "10:00", EndTime: "12:00"}, true},
		{"bad date", SessionCore{DateSession: "15/01/2030", StartTime: "10:00", EndTime: "12:00"}, true},
		{"bad clock", SessionCore{DateSession: "2030-01-15", StartTime: "10h", EndTime: "12:00"}, true},
		{"ends before start", SessionCore{DateSession: "2030-01-15", StartTime: "12:00", EndTime: "10:00"}, true},
		{"zero length", SessionCore{DateSession: "2030-01-15", StartTime: "10:00", EndTime: "10:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSession)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionCore_Expired(t *testing.T) {
	s := SessionCore{DateSession: "2030-01-15", StartTime: "10:00", EndTime: "12:00"}

	assert.False(t, s.Expired(time.Date(2030, 1, 15, 11, 59, 0, 0, time.UTC)))
	assert.True(t, s.Expired(time.Date(2030, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.True(t, (&SessionCore{DateSession: "garbage"}).Expired(time.Now()))
}

func TestOutcomeAndAcceptance(t *testing.T) {
	assert.True(t, Outcome{Status: OutcomeSuccess}.OK())
	assert.False(t, Outcome{Status: OutcomeError, Code: CodeCourseFull}.OK())

	e := &Exchange{}
	assert.False(t, e.Accepted())
	id := uuid.New()
	e.AccepterID = &id
	assert.True(t, e.Accepted())
}

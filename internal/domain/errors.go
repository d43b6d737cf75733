package domain

import "errors"

// Lookup errors
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrCourseNotFound   = errors.New("course not found")
	ErrExchangeNotFound = errors.New("exchange not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// Enrollment and acceptance errors
var (
	ErrCourseFull              = errors.New("course is full")
	ErrAlreadyEnrolled         = errors.New("user is already enrolled in this course")
	ErrHostCannotAttend        = errors.New("host cannot attend their own course")
	ErrAlreadyAccepted         = errors.New("exchange has already been accepted")
	ErrCannotAcceptOwnExchange = errors.New("requester cannot accept their own exchange")
)

var (
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrInvalidAmount     = errors.New("token amount is out of range")
)

// Catalog errors
var (
	ErrInvalidSession  = errors.New("invalid session: date, start and end time are required and must be ordered")
	ErrInvalidSkill    = errors.New("skill name and category are required")
	ErrInvalidLocation = errors.New("address, zip code and city are required")
	ErrInvalidCapacity = errors.New("max attendees must be non-negative and not below the current attendee count")
	ErrNotSessionOwner = errors.New("only the session owner can perform this action")
	ErrExchangeLocked  = errors.New("an accepted exchange cannot be modified")
)

// Profile errors
var (
	ErrInvalidProfile   = errors.New("display name must not be empty and a new password must be at least 8 characters")
	ErrDisplayNameTaken = errors.New("display name is already taken")
)

type Kind int

const (
	KindPersistenceFailure Kind = iota
	KindNotFound
	KindCapacityExceeded
	KindAlreadyRegistered
	KindAlreadyAccepted
	KindInsufficientFunds
	KindForbidden
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindAlreadyRegistered:
		return "already_registered"
	case KindAlreadyAccepted:
		return "already_accepted"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	default:
		return "persistence_failure"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUserNotFound, KindNotFound},
	{ErrCourseNotFound, KindNotFound},
	{ErrExchangeNotFound, KindNotFound},
	{ErrSessionNotFound, KindNotFound},
	{ErrCategoryNotFound, KindNotFound},
	{ErrCourseFull, KindCapacityExceeded},
	{ErrAlreadyEnrolled, KindAlreadyRegistered},
	{ErrAlreadyAccepted, KindAlreadyAccepted},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrHostCannotAttend, KindForbidden},
	{ErrCannotAcceptOwnExchange, KindForbidden},
	{ErrNotSessionOwner, KindForbidden},
	{ErrExchangeLocked, KindForbidden},
	{ErrInvalidSession, KindInvalid},
	{ErrInvalidSkill, KindInvalid},
	{ErrInvalidLocation, KindInvalid},
	{ErrInvalidCapacity, KindInvalid},
	{ErrInvalidAmount, KindInvalid},
	{ErrInvalidProfile, KindInvalid},
	{ErrDisplayNameTaken, KindAlreadyRegistered},
}

// KindOf classifies err. Anything unrecognised is a persistence failure.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindPersistenceFailure
}

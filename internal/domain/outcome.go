package domain

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// Outcome codes, used as the query-string value on redirects.
const (
	CodeJoinedCourse            = "joined_course"
	CodeJoinedExchange          = "joined_exchange"
	CodeCourseNotFound          = "course_not_found"
	CodeExchangeNotFound        = "exchange_not_found"
	CodeNotEnoughTokens         = "not_enough_tokens"
	CodeCourseFull              = "course_full"
	CodeAlreadyEnrolled         = "already_enrolled"
	CodeHostCannotAttend        = "host_cannot_attend"
	CodeExchangeAlreadyAccepted = "exchange_already_accepted"
	CodeCannotAcceptOwnExchange = "cannot_accept_own_exchange"
	CodeCannotJoinCourse        = "cannot_join_course"
	CodeCannotJoinExchange      = "cannot_join_exchange"
	CodeNotAuthenticated        = "not_authenticated"
)

type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Data    any           `json:"data,omitempty"`
}

func (o Outcome) OK() bool {
	return o.Status == OutcomeSuccess
}

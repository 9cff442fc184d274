package entity

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Request describes one user-data-download job: a study, a user, and an
// inclusive calendar-date range.
type Request struct {
	StudyID   string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}

// NewRequest validates and constructs a Request from its raw fields.
// startDate and endDate must be "YYYY-MM-DD" calendar dates with
// startDate <= endDate.
func NewRequest(studyID, userID, startDate, endDate string) (*Request, error) {
	if studyID == "" {
		return nil, fmt.Errorf("studyId is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid startDate %q: %w", startDate, err)
	}

	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid endDate %q: %w", endDate, err)
	}

	if start.After(end) {
		return nil, fmt.Errorf("startDate %s is after endDate %s", startDate, endDate)
	}

	return &Request{
		StudyID:   studyID,
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
	}, nil
}

// StartDateString renders StartDate as an ISO calendar date.
func (r *Request) StartDateString() string {
	return r.StartDate.Format(dateLayout)
}

// EndDateString renders EndDate as an ISO calendar date.
func (r *Request) EndDateString() string {
	return r.EndDate.Format(dateLayout)
}

package utils

import (
	"fmt"
	"regexp"
	"time"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateDateRange validates that start and end are "YYYY-MM-DD"
// calendar dates with start on or before end.
func ValidateDateRange(start, end string) error {
	const layout = "2006-01-02"

	startDate, err := time.Parse(layout, start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", start, err)
	}

	endDate, err := time.Parse(layout, end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", end, err)
	}

	if startDate.After(endDate) {
		return fmt.Errorf("start date %s is after end date %s", start, end)
	}

	return nil
}

// ValidateTableID validates a remote table id's shape. Table ids are
// alphanumeric with optional leading "syn".
var tableIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

func ValidateTableID(tableID string) error {
	if tableID == "" {
		return fmt.Errorf("table id must not be empty")
	}
	if !tableIDRegex.MatchString(tableID) {
		return fmt.Errorf("invalid table id format: %s", tableID)
	}
	return nil
}

// SanitizeString removes control characters from s.
func SanitizeString(s string) string {
	return regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
}

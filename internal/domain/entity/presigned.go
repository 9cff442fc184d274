package entity

import "time"

// PresignedUrlInfo is a time-limited download URL and its absolute
// expiration instant.
type PresignedUrlInfo struct {
	URL            string
	ExpirationTime time.Time
}

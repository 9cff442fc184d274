package port

import "time"

// ObjectStore abstracts the object-storage backend the final archive
// is uploaded to.
type ObjectStore interface {
	// PutFile uploads the local file at localPath to bucket/key,
	// replacing any existing object at that key.
	PutFile(bucket, key, localPath string) error

	// GeneratePresignedURL returns a GET URL for bucket/key that
	// expires at the given absolute instant.
	GeneratePresignedURL(bucket, key string, expiration time.Time) (string, error)
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSObjectStore implements port.ObjectStore against Google Cloud
// Storage, grounded on the storage client the pack's dolthub-dolt
// blobstore adapter uses for its own bucket I/O and signed-URL
// generation.
type GCSObjectStore struct {
	client             *gcs.Client
	serviceAccountID   string
	serviceAccountJSON []byte
	logger             *zap.Logger
}

// NewGCSObjectStore builds an ObjectStore backed by client.
// serviceAccountID is the signing identity's email; serviceAccountJSON
// is its private key, used to sign download URLs. Both must belong to
// the account the client authenticates with.
func NewGCSObjectStore(client *gcs.Client, serviceAccountID string, serviceAccountJSON []byte, logger *zap.Logger) *GCSObjectStore {
	return &GCSObjectStore{client: client, serviceAccountID: serviceAccountID, serviceAccountJSON: serviceAccountJSON, logger: logger}
}

// PutFile uploads the local file at localPath to bucket/key.
func (o *GCSObjectStore) PutFile(bucket, key, localPath string) (err error) {
	ctx := context.Background()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	w := o.client.Bucket(bucket).Object(key).NewWriter(ctx)
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("finalize upload of %s: %w", key, cerr)
		}
	}()

	if _, err = io.Copy(w, f); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	o.logger.Debug("uploaded object", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// GeneratePresignedURL returns a GET URL for bucket/key valid until
// expiration.
func (o *GCSObjectStore) GeneratePresignedURL(bucket, key string, expiration time.Time) (string, error) {
	opts := &gcs.SignedURLOptions{
		GoogleAccessID: o.serviceAccountID,
		PrivateKey:     o.serviceAccountJSON,
		Method:         "GET",
		Expires:        expiration,
		Scheme:         gcs.SigningSchemeV4,
	}

	url, err := o.client.Bucket(bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", key, err)
	}
	return url, nil
}

package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/scribe/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including type, endpoint, credentials, and bucket.
//
// Returns:
//   - ObjectStorage: initialized storage client implementation.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg config.StorageConfig) (ObjectStorage, error) {
	storeType := StorageType(strings.ToLower(cfg.Type))
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	switch storeType {
	case StorageTypeMinIO:
		return NewMinIOStorage(cfg)
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible:
		return NewS3Storage(storeType, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	case strings.Contains(endpoint, ":9000"), strings.Contains(endpoint, "minio"):
		return StorageTypeMinIO
	default:
		return StorageTypeS3Compatible
	}
}

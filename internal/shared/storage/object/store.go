package object

import (
	"context"
	"errors"
	"io"
	"path"

	"persona-backend/internal/shared/util"
)

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore saves and retrieves opaque blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// ProviderRawKey is where the unparsed provider payload for an analysis is archived.
func ProviderRawKey(userID, analysisID string) (string, error) {
	segment, err := util.SanitizeKeySegment(analysisID)
	if err != nil {
		return "", err
	}
	return path.Join("provider-raw", util.OwnerKey(userID), segment+".json"), nil
}

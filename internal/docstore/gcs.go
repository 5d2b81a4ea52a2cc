package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/aristath/fundledger/internal/domain"
)

// GCSStore versions documents by object generation
type GCSStore struct {
	bucket *storage.BucketHandle
	prefix string
	log    zerolog.Logger
}

// NewGCSStore creates a store on bucket using application default credentials held by client
func NewGCSStore(client *storage.Client, bucket, prefix string, log zerolog.Logger) *GCSStore {
	return &GCSStore{
		bucket: client.Bucket(bucket),
		prefix: strings.Trim(prefix, "/"),
		log:    log.With().Str("repository", "gcs_docstore").Logger(),
	}
}

func (s *GCSStore) object(p string) *storage.ObjectHandle {
	key := strings.TrimPrefix(p, "/")
	if s.prefix != "" {
		key = path.Join(s.prefix, p)
	}
	return s.bucket.Object(key)
}

// Read fetches the object and its generation
func (s *GCSStore) Read(ctx context.Context, p string) (*Document, error) {
	r, err := s.object(p).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, mapGCSError(err))
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", p, err)
	}
	return &Document{
		Path:    p,
		Content: content,
		Version: strconv.FormatInt(r.Attrs.Generation, 10),
	}, nil
}

// Write uploads the object conditioned on the generation it was read at
func (s *GCSStore) Write(ctx context.Context, p string, content []byte, message, version string) (string, error) {
	cond, err := generationConditions(version)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", p, err)
	}

	w := s.object(p).If(cond).NewWriter(ctx)
	w.ContentType = contentType(p)
	w.Metadata = map[string]string{messageMetadataKey: message}

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write %s: %w", p, mapGCSError(err))
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", p, mapGCSError(err))
	}

	gen := strconv.FormatInt(w.Attrs().Generation, 10)
	s.log.Debug().Str("path", p).Str("generation", gen).Str("message", message).Msg("Object written")
	return gen, nil
}

// mapGCSError translates storage errors into the domain taxonomy
func mapGCSError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		case http.StatusPreconditionFailed, http.StatusConflict:
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
	}
	return err
}

// generationConditions turns a version token into write preconditions.
// A token that is not a generation number is a caller bug, not a conflict.
func generationConditions(version string) (storage.Conditions, error) {
	if version == "" {
		return storage.Conditions{DoesNotExist: true}, nil
	}
	gen, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return storage.Conditions{}, fmt.Errorf("malformed generation %q: %w", version, err)
	}
	return storage.Conditions{GenerationMatch: gen}, nil
}

package docstore

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/aristath/fundledger/internal/domain"
)

func TestMapS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key", &types.NoSuchKey{}, domain.ErrNotFound},
		{"precondition failed", &smithy.GenericAPIError{Code: "PreconditionFailed"}, domain.ErrConflict},
		{"conditional conflict", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"}, domain.ErrConflict},
		{"not found code", &smithy.GenericAPIError{Code: "NotFound"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapS3Error(tt.err), tt.want)
		})
	}

	other := errors.New("access denied")
	assert.Equal(t, other, mapS3Error(other))
}

func TestMapGCSError(t *testing.T) {
	assert.ErrorIs(t, mapGCSError(storage.ErrObjectNotExist), domain.ErrNotFound)
	assert.ErrorIs(t, mapGCSError(&googleapi.Error{Code: http.StatusPreconditionFailed}), domain.ErrConflict)
	assert.ErrorIs(t, mapGCSError(&googleapi.Error{Code: http.StatusNotFound}), domain.ErrNotFound)

	other := &googleapi.Error{Code: http.StatusForbidden}
	assert.NotErrorIs(t, mapGCSError(other), domain.ErrConflict)
}

func TestGenerationConditions(t *testing.T) {
	cond, err := generationConditions("")
	assert.NoError(t, err)
	assert.True(t, cond.DoesNotExist)

	cond, err = generationConditions("1712345678901234")
	assert.NoError(t, err)
	assert.Equal(t, int64(1712345678901234), cond.GenerationMatch)

	_, err = generationConditions("W/\"etag\"")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestGCSStore_MalformedVersionIsNotRetried(t *testing.T) {
	s := &GCSStore{prefix: "portfolio"}
	_, err := s.Write(context.Background(), "data/transactions.csv", []byte("x"), "msg", "not-a-generation")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestS3Store_Key(t *testing.T) {
	s := &S3Store{prefix: "portfolio"}
	assert.Equal(t, "portfolio/data/transactions.csv", s.key("data/transactions.csv"))

	s = &S3Store{}
	assert.Equal(t, "data/state.json", s.key("/data/state.json"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("data/transactions.csv"))
	assert.Equal(t, "application/json", contentType("data/state.json"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}

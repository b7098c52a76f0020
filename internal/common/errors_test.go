package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/docuscan/extraction-pipeline/internal/entity"
)

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("low-level failure")
	err := NewAppError("STORE_ERROR", "could not persist", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "STORE_ERROR")
	assert.Contains(t, err.Error(), "low-level failure")

	bare := NewAppError("CONFIG_ERROR", "bad value", nil)
	assert.Equal(t, "CONFIG_ERROR: bad value", bare.Error())
}

func TestGRPCStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{ErrNotFound, codes.NotFound},
		{ErrInvalidDocument, codes.InvalidArgument},
		{ErrEmptyBatch, codes.InvalidArgument},
		{ErrBatchTooLarge, codes.InvalidArgument},
		{ErrQueueFull, codes.ResourceExhausted},
		{ErrCancelled, codes.Canceled},
		{ErrInternal, codes.Internal},
		{errors.New("anything else"), codes.Internal},
	}
	for _, tc := range cases {
		st, ok := status.FromError(GRPCStatus(tc.err))
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code(), "for %v", tc.err)
	}
	assert.NoError(t, GRPCStatus(nil))
}

func TestGRPCStatusSeesWrappedErrors(t *testing.T) {
	wrapped := WrapError(ErrQueueFull, "admission")
	st, ok := status.FromError(GRPCStatus(wrapped))
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
}

func TestValidateDocument(t *testing.T) {
	valid := entity.Document{Bytes: []byte("x"), MediaType: "application/pdf", Filename: "a.pdf"}
	assert.NoError(t, ValidateDocument(valid))

	empty := valid
	empty.Bytes = nil
	assert.ErrorIs(t, ValidateDocument(empty), ErrInvalidDocument)

	unsupported := valid
	unsupported.MediaType = "application/zip"
	assert.ErrorIs(t, ValidateDocument(unsupported), ErrInvalidDocument)

	oversized := valid
	oversized.Bytes = make([]byte, MaxDocumentBytes+1)
	assert.ErrorIs(t, ValidateDocument(oversized), ErrInvalidDocument)
}

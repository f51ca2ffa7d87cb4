package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/transcriber-be/internal/api/storage"
)

func TestDocumentCursor_RoundTrip(t *testing.T) {
	original := &storage.DocumentCursor{
		CreatedAt:  time.Date(2025, 6, 15, 10, 30, 0, 123456789, time.UTC),
		DocumentID: "5b2a9c1e-3f44-4d6b-9a07-8e1f2c3d4e5f",
	}

	encoded, err := EncodeDocumentCursor(original)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeDocumentCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, original.CreatedAt.UnixNano(), decoded.CreatedAt.UnixNano())
	assert.Equal(t, original.DocumentID, decoded.DocumentID)
}

func TestDecodeDocumentCursor_Empty(t *testing.T) {
	cursor, err := DecodeDocumentCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeDocumentCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "!!!not-base64!!!"},
		{name: "missing separator", cursor: base64.StdEncoding.EncodeToString([]byte("1718447400000000000"))},
		{name: "non-numeric timestamp", cursor: base64.StdEncoding.EncodeToString([]byte("abc|doc-1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocumentCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}

package duoerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", NotFound.String())
	assert.Equal(t, "Other", Kind(999).String())
}

func TestAsAndIs(t *testing.T) {
	err := New(AlreadyExists, "copy", "file:///tmp/x.txt", nil)
	assert.Equal(t, AlreadyExists, As(err))
	assert.True(t, Is(err, AlreadyExists))
	assert.False(t, Is(err, NotFound))
	assert.Equal(t, Other, As(errors.New("plain")))
}

func TestWrapping(t *testing.T) {
	cause := errors.New("disk is full")
	err := New(DiskSpaceExhausted, "copy", "file:///tmp/big.bin", cause)
	assert.True(t, errors.Is(err, err))
	assert.True(t, errors.Unwrap(err) == cause)
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(New(NotFound, "stat", "", nil)))
}

func TestNoRetry(t *testing.T) {
	assert.True(t, IsNoRetry(New(Cancelled, "copy", "", nil)))
	assert.False(t, IsNoRetry(New(RemoteError, "copy", "", nil)))
	assert.False(t, IsNoRetry(nil))
}

func TestNewf(t *testing.T) {
	err := Newf(ArchiveFormatError, "iterdir", "archive:///tmp/a.zip#sub", "bad central directory at offset %d", 42)
	assert.Contains(t, err.Error(), "bad central directory at offset 42")
	assert.Equal(t, ArchiveFormatError, As(err))
}

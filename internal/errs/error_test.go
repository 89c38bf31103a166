package errs

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	t.Run("session fatal", func(t *testing.T) {
		assert.True(t, IsSessionFatal(Closed))
		assert.True(t, IsSessionFatal(Timeout))
		assert.True(t, IsSessionFatal(Auth))
		assert.False(t, IsSessionFatal(Exists))
	})

	t.Run("local fatal", func(t *testing.T) {
		assert.True(t, IsLocalFatal(NoSpace))
		assert.True(t, IsLocalFatal(Perms))
		assert.False(t, IsLocalFatal(Checksum))
	})

	t.Run("per item", func(t *testing.T) {
		assert.True(t, IsPerItem(Exists))
		assert.True(t, IsPerItem(Checksum))
		assert.False(t, IsPerItem(Timeout))
	})
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(byte(Unknown)))
	assert.True(t, Valid(byte(BadRemote)))
	assert.False(t, Valid(byte(maxCode)))
	assert.False(t, Valid(255))
}

func TestCodedErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := New(NoSpace, cause)

	code, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, NoSpace, code)

	wrapped := fmt.Errorf("writing file: %w", err)
	code, ok = As(wrapped)
	require.True(t, ok)
	assert.Equal(t, NoSpace, code)
}

func TestAsOnPlainError(t *testing.T) {
	_, ok := As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestTranslateOSError(t *testing.T) {
	assert.Equal(t, Perms, TranslateOSError(fs.ErrPermission, Unknown))
	assert.Equal(t, NotFound, TranslateOSError(fs.ErrNotExist, Unknown))
	assert.Equal(t, Exists, TranslateOSError(fs.ErrExist, Unknown))
	assert.Equal(t, OpenFail, TranslateOSError(fmt.Errorf("weird"), OpenFail))
	assert.Equal(t, OpenFail, TranslateOSError(nil, OpenFail))
}

func TestMessageTablesCoverAllCodes(t *testing.T) {
	for c := Unknown; c < maxCode; c++ {
		assert.NotEmpty(t, ClientMessage(c))
		assert.NotEmpty(t, ServerMessage(c))
	}
}

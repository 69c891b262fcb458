package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrSetup", ErrSetup},
		{"ErrIndexNotFound", ErrIndexNotFound},
		{"ErrRetrieval", ErrRetrieval},
		{"ErrGeneration", ErrGeneration},
		{"ErrPersistence", ErrPersistence},
		{"ErrStreamIncomplete", ErrStreamIncomplete},
		{"ErrStreamClosed", ErrStreamClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestPersistenceError_IsPersistence(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("respond: %w", &PersistenceError{Reply: "hello", Err: cause})

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrGeneration))

	var perr *PersistenceError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, "hello", perr.Reply)
	assert.Contains(t, err.Error(), "reply succeeded, storage failed")
}

func TestIndexNotFoundError(t *testing.T) {
	err := IndexNotFoundError("journey", []string{"/data/indexes/journey/vectors.gob"})

	assert.True(t, errors.Is(err, ErrSetup))
	assert.True(t, errors.Is(err, ErrIndexNotFound))
	assert.Contains(t, err.Error(), "vectors.gob")
	assert.Contains(t, err.Error(), "papersoul index build --corpus journey")
}

package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

func TestNotFoundError_ExactMarkerString(t *testing.T) {
	err := deltaerrors.NotFoundError("customer-CUST0001")
	assert.Equal(t, "Failed to retrieve object: customer-CUST0001", err.Error())
	assert.True(t, deltaerrors.Is(err, deltaerrors.NotFound))
}

func TestIs_FalseForDifferentKind(t *testing.T) {
	err := deltaerrors.TimeoutError("deadline exceeded")
	assert.False(t, deltaerrors.Is(err, deltaerrors.NotFound))
	assert.True(t, deltaerrors.Is(err, deltaerrors.Timeout))
}

func TestIs_FalseForPlainError(t *testing.T) {
	assert.False(t, deltaerrors.Is(fmt.Errorf("plain"), deltaerrors.IO))
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := deltaerrors.IOError("write failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestConcurrentModificationError_MessageIncludesVersions(t *testing.T) {
	err := deltaerrors.ConcurrentModificationError(3, 5)
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "5")
}

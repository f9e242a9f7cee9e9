package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := VectorBackendUnavailable("qdrant search failed", fmt.Errorf("connection refused"))
	assert.Equal(t, "[VECTOR_BACKEND_UNAVAILABLE] qdrant search failed: connection refused", err.Error())
	assert.Equal(t, "[INVALID_ARGUMENT] empty query", InvalidArgument("empty query").Error())
}

func TestIsCode(t *testing.T) {
	base := IndexCorrupt("metadata file missing")
	wrapped := pkgerrors.Wrap(base, "open flat index")
	nested := Wrap(wrapped, ErrCodeConfigInvalid, "bootstrap")

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", base, ErrCodeIndexCorrupt, true},
		{"through pkg/errors wrap", wrapped, ErrCodeIndexCorrupt, true},
		{"outer code", nested, ErrCodeConfigInvalid, true},
		{"inner code behind outer AppError", nested, ErrCodeIndexCorrupt, true},
		{"different code", base, ErrCodeTimeout, false},
		{"plain error", fmt.Errorf("boom"), ErrCodeTimeout, false},
		{"nil", nil, ErrCodeTimeout, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeQueryFailed, GetCodeFromError(QueryFailed("x", nil), ErrCodeTimeout))
	assert.Equal(t, ErrCodeTimeout, GetCodeFromError(fmt.Errorf("plain"), ErrCodeTimeout))
}

func TestWithContext(t *testing.T) {
	err := InvalidArgument("bad dimension").WithContext("expected", 384).WithContext("got", 3)
	assert.Equal(t, 384, err.Context["expected"])
	assert.Equal(t, 3, err.Context["got"])
}

package core_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/core"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want core.Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: core.NotFound("guest not found", nil), want: core.KindNotFound},
		{name: "wrapped unauthorized", err: fmt.Errorf("outer: %w", core.Unauthorized("no", nil)), want: core.KindUnauthorized},
		{name: "deadline", err: context.DeadlineExceeded, want: core.KindTimeout},
		{name: "plain", err: errors.New("boom"), want: core.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, core.KindOf(tt.err))
		})
	}
}

func TestErrorIs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("load: %w", core.Timeout("try again", context.DeadlineExceeded))
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("keeps classified errors", func(t *testing.T) {
		t.Parallel()
		original := core.InvalidField("type", "Invalid email type")
		assert.Same(t, original, core.Wrap(original))
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		t.Parallel()
		err := core.Wrap(fmt.Errorf("query: %w", context.DeadlineExceeded))
		require.Error(t, err)
		assert.Equal(t, core.KindTimeout, core.KindOf(err))
	})

	t.Run("unclassified becomes unknown without leaking detail", func(t *testing.T) {
		t.Parallel()
		err := core.Wrap(errors.New("pq: relation guests does not exist"))
		assert.Equal(t, core.KindUnknown, core.KindOf(err))
		assert.NotContains(t, core.Message(err), "relation")
	})

	t.Run("nil stays nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, core.Wrap(nil))
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusNotFound, core.Status(core.KindNotFound))
	assert.Equal(t, http.StatusUnauthorized, core.Status(core.KindUnauthorized))
	assert.Equal(t, http.StatusBadRequest, core.Status(core.KindInvalidRequest))
	assert.Equal(t, http.StatusBadGateway, core.Status(core.KindTransportFailure))
	assert.Equal(t, http.StatusServiceUnavailable, core.Status(core.KindServiceUnavailable))
	assert.Equal(t, http.StatusGatewayTimeout, core.Status(core.KindTimeout))
	assert.Equal(t, http.StatusConflict, core.Status(core.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, core.Status(core.KindUnknown))
}

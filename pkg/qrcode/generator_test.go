package qrcode_test

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/pkg/qrcode"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := qrcode.Generate("  \t", 256)
		assert.ErrorIs(t, err, qrcode.ErrEmptyContent)
	})

	tests := []struct {
		name string
		size int
		want int
	}{
		{"default size", 0, qrcode.DefaultSize},
		{"explicit size", 256, 256},
		{"clamped small", 10, 64},
		{"clamped large", 10000, qrcode.MaxSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := qrcode.Generate("https://yishanandyitong.wedding", tt.size)
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Bounds().Dx())
		})
	}
}

func TestInvitationLink(t *testing.T) {
	t.Parallel()

	got, err := qrcode.InvitationLink("https://yishanandyitong.wedding", "invite")
	require.NoError(t, err)
	assert.Equal(t, "https://yishanandyitong.wedding?utm_source=invite", got)

	got, err = qrcode.InvitationLink("https://yishanandyitong.wedding/", "")
	require.NoError(t, err)
	assert.Equal(t, "https://yishanandyitong.wedding/", got)

	_, err = qrcode.InvitationLink("not a url", "invite")
	assert.ErrorIs(t, err, qrcode.ErrInvalidURL)
}

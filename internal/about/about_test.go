package about

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadExchange(t *testing.T) {
	team := Team{Name: "Equipo 1", Members: []string{"Juan Pérez", "María García"}}

	text, err := team.Payload()
	require.NoError(t, err)

	got, err := ParsePayload(text)
	require.NoError(t, err)
	assert.Equal(t, team, got)
}

func TestParsePayloadRejectsForeignCodes(t *testing.T) {
	for _, text := range []string{"https://example.com", `{"kind":"other","teamName":"x"}`, `{"kind":"backdrop.team/v1"}`} {
		_, err := ParsePayload(text)
		assert.True(t, errors.Is(err, ErrNotTeamPayload), "%q: %v", text, err)
	}
}

func TestQRCodeIsPNG(t *testing.T) {
	data, err := Team{Name: "Equipo 1"}.QRCode(128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

// Package about describes the team behind the app and encodes it as a QR
// code so another device can scan it.
package about

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// PayloadKind tags team payloads so scanners can ignore unrelated codes.
const PayloadKind = "backdrop.team/v1"

var ErrNotTeamPayload = errors.New("about: not a team payload")

// Team identifies the team.
type Team struct {
	Name    string   `json:"teamName"`
	Members []string `json:"members"`
}

type payload struct {
	Kind string `json:"kind"`
	Team
}

// Payload is the JSON text encoded into the QR code.
func (t Team) Payload() (string, error) {
	data, err := json.Marshal(payload{Kind: PayloadKind, Team: t})
	if err != nil {
		return "", fmt.Errorf("encode team: %w", err)
	}
	return string(data), nil
}

// QRCode renders the payload as a size x size PNG.
func (t Team) QRCode(size int) ([]byte, error) {
	text, err := t.Payload()
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// ParsePayload reads a scanned team payload.
func ParsePayload(text string) (Team, error) {
	var p payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &p); err != nil {
		return Team{}, fmt.Errorf("%w: %v", ErrNotTeamPayload, err)
	}
	if p.Kind != PayloadKind || p.Name == "" {
		return Team{}, ErrNotTeamPayload
	}
	return p.Team, nil
}

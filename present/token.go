package present

import (
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/bringyour/classroom/present/model"
)

// Participant tokens carry the identity a participant presents to the relay.
// Payload authentication is out of scope so the relay reads tokens unverified.
// Tokens are still signed so that a deployment can choose to verify them.

func NewParticipantToken(participant model.Participant, signingKey []byte) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"participant_id": participant.Id.String(),
		"role":           participant.Role.String(),
		"name":           participant.HumanName,
	})
	return token.SignedString(signingKey)
}

func ParseParticipantTokenUnverified(tokenStr string) (model.Participant, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, gojwt.MapClaims{})
	if err != nil {
		return model.Participant{}, err
	}

	claims := token.Claims.(gojwt.MapClaims)

	participant := model.Participant{}

	if participantIdStr, ok := claims["participant_id"].(string); ok {
		participantId, err := model.ParseId(participantIdStr)
		if err != nil {
			return model.Participant{}, err
		}
		participant.Id = participantId
	} else {
		return model.Participant{}, fmt.Errorf("Token is missing participant_id.")
	}
	if roleStr, ok := claims["role"].(string); ok {
		role, err := model.ParseRole(roleStr)
		if err != nil {
			return model.Participant{}, err
		}
		participant.Role = role
	}
	if name, ok := claims["name"].(string); ok {
		participant.HumanName = name
	}

	return participant, nil
}

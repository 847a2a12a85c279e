package present

import (
	"testing"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present/model"
)

func TestParticipantToken(t *testing.T) {
	participant := model.NewParticipant(model.RoleStudent, "Ada")

	tokenStr, err := NewParticipantToken(participant, []byte("test"))
	assert.Equal(t, err, nil)

	parsed, err := ParseParticipantTokenUnverified(tokenStr)
	assert.Equal(t, err, nil)
	assert.Equal(t, parsed, participant)
}

func TestParticipantTokenMissingId(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"role": model.RoleStudent.String(),
	})
	tokenStr, err := token.SignedString([]byte("test"))
	assert.Equal(t, err, nil)

	_, err = ParseParticipantTokenUnverified(tokenStr)
	assert.NotEqual(t, err, nil)

	_, err = ParseParticipantTokenUnverified("not a token")
	assert.NotEqual(t, err, nil)
}

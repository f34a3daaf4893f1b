package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"campus-chat/models"
)

func Test_JWT_Roundtrip(t *testing.T) {
	req := require.New(t)

	identity := models.Identity{ID: 42, Role: models.RoleFaculty}
	token, err := GenerateJWT("secret", identity, time.Hour)
	req.NoError(err)

	parsed, err := ParseJWT("secret", token)
	req.NoError(err)
	req.Equal(identity, parsed)
}

func Test_JWT_WrongSecret(t *testing.T) {
	req := require.New(t)

	token, err := GenerateJWT("secret", models.Identity{ID: 1, Role: models.RoleStudent}, time.Hour)
	req.NoError(err)

	_, err = ParseJWT("other-secret", token)
	req.Error(err)
}

func Test_JWT_Empty(t *testing.T) {
	_, err := ParseJWT("secret", "")
	require.Error(t, err)
}

func Test_JWT_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateJWT("secret", models.Identity{ID: 1, Role: models.RoleStudent}, -time.Minute)
	req.NoError(err)

	_, err = ParseJWT("secret", token)
	req.Error(err)
}

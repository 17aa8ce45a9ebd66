package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Nickname string `json:"nickname" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(registerPayload{
		Nickname: "player-one",
		Email:    "player@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(registerPayload{
		Nickname: "ab",
		Email:    "not-an-email",
		Password: "short",
	})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 3)

	fields := make(map[string]string, len(failures))
	for _, failure := range failures {
		fields[failure.Field] = failure.Tag
	}
	require.Equal(t, "min", fields["nickname"])
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "min", fields["password"])
}

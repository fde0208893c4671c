package main

import (
	"encoding/json"
	"testing"

	"github.com/agilira/go-errors"
	"github.com/microsoft/azchain/internal/validators"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword_FromStdin(t *testing.T) {
	stdout, _, err := runRoot(t, "Str0ng-Passw0rd\n", "validate", "password")
	require.NoError(t, err)
	require.Contains(t, stdout, "meets the complexity requirements")
}

func TestValidatePassword_NoTrailingNewline(t *testing.T) {
	_, _, err := runRoot(t, "Str0ng-Passw0rd", "validate", "password")
	require.NoError(t, err)
}

func TestValidatePassword_Weak(t *testing.T) {
	_, _, err := runRoot(t, "password\r\n", "validate", "password")
	require.Error(t, err)
	require.Contains(t, err.Error(), "between 12 and 123")
	require.Equal(t, ExitError, exitCode(err))
}

func TestValidatePassword_EmptyStdin(t *testing.T) {
	_, _, err := runRoot(t, "", "validate", "password")
	require.ErrorContains(t, err, "reading password from stdin")
}

func TestValidateTags_Text(t *testing.T) {
	stdout, _, err := runRoot(t, "", "validate", "tags", "team=storage", "env=prod", "owner", "env=dev")
	require.NoError(t, err)
	require.Equal(t, "env=dev\nowner=\nteam=storage\n", stdout)
}

func TestValidateTags_JSON(t *testing.T) {
	stdout, _, err := runRoot(t, "", "validate", "tags", "-o", "json", "conn=a=b")
	require.NoError(t, err)

	var tags map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &tags))
	require.Equal(t, map[string]string{"conn": "a=b"}, tags)
}

func TestValidateTags_Require(t *testing.T) {
	stdout, _, err := runRoot(t, "", "validate", "tags", "env=prod", "owner", "--require", "env,owner")
	require.NoError(t, err)
	require.Equal(t, "env=prod\nowner=\n", stdout)

	stdout, _, err = runRoot(t, "", "validate", "tags", "env=prod", "--require", "env,owner,team")
	require.ErrorContains(t, err, "missing required tag(s): owner, team")
	require.Empty(t, stdout)
}

func TestValidateTags_Invalid(t *testing.T) {
	_, _, err := runRoot(t, "", "validate", "tags", "=prod")
	coder, ok := err.(errors.ErrorCoder)
	require.True(t, ok, "expected a coded error, got %T: %v", err, err)
	require.Equal(t, validators.ErrCodeInvalidTag, string(coder.ErrorCode()))

	_, _, err = runRoot(t, "", "validate", "tags", "--output", "yaml", "a=b")
	require.ErrorContains(t, err, `"yaml" is not one of: text, json`)
}

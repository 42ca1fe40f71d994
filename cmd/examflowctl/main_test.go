package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "examflow/internal/jwt_token"
	"examflow/internal/platform/config"
)

func TestTokenCommandPrintsValidToken(t *testing.T) {
	cfg := config.Server{JWTSigningKey: "cli-key", JWTIssuer: "examflow"}
	user, clinic := uuid.NewString(), uuid.NewString()

	var out bytes.Buffer
	cmd := newRootCommand(cfg)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--user", user, "--role", "doctor", "--clinic", clinic, "--ttl", "10m"})
	require.NoError(t, cmd.Execute())

	claims, err := jwttoken.NewJWTService("cli-key", "examflow").ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, clinic, claims.ClinicID)
}

func TestMintTokenRejectsBadInput(t *testing.T) {
	cfg := config.Server{JWTSigningKey: "cli-key", JWTIssuer: "examflow"}
	user, clinic := uuid.NewString(), uuid.NewString()

	_, err := mintToken(cfg, "nope", "doctor", clinic, 0)
	assert.ErrorContains(t, err, "--user")

	_, err = mintToken(cfg, user, "surgeon", clinic, 0)
	assert.ErrorContains(t, err, "--role")

	_, err = mintToken(cfg, user, "nurse", "nope", 0)
	assert.ErrorContains(t, err, "--clinic")

	_, err = mintToken(cfg, user, "nurse", clinic, 0)
	assert.ErrorContains(t, err, "--ttl")
}

func TestSeedRequiresDatabase(t *testing.T) {
	cmd := newRootCommand(config.Server{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"seed", "staff.json"})
	assert.ErrorContains(t, cmd.Execute(), "DATABASE_URL")
}

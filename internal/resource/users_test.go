package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

func TestUsersMe(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(Users(), "GET", nil, []string{"me"}, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	user := storage.Record{"_id": "alice", "email": "alice@example.com", "hashedPassword": "x"}
	got, err := f.call(Users(), "GET", user, []string{"me"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, storage.Record{"_id": "alice", "email": "alice@example.com"}, got)
	assert.Contains(t, user, "hashedPassword", "context user must not be modified")
}

func TestUsersRegisterLoginLogout(t *testing.T) {
	f := newFixture(t)
	svc := Users()

	got, err := f.call(svc, "POST", nil, []string{"register"}, nil, map[string]any{"email": "carol@example.com", "password": "pw"})
	require.NoError(t, err)
	registered := got.(storage.Record)
	assert.Equal(t, "carol@example.com", registered["email"])
	assert.NotEmpty(t, registered["accessToken"])
	assert.NotContains(t, registered, "password")

	_, err = f.call(svc, "POST", nil, []string{"register"}, nil, map[string]any{"email": "carol@example.com", "password": "pw"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.call(svc, "POST", nil, []string{"register"}, nil, "not an object")
	assert.EqualError(t, err, "Missing fields")

	got, err = f.call(svc, "POST", nil, []string{"login"}, nil, map[string]any{"email": "carol@example.com", "password": "pw"})
	require.NoError(t, err)
	token := got.(storage.Record)["accessToken"].(string)

	_, err = f.call(svc, "POST", nil, []string{"login"}, nil, map[string]any{"email": "carol@example.com", "password": "wrong"})
	assert.ErrorIs(t, err, apperr.ErrCredential)

	user, err := f.auth.Identify(t.Context(), token)
	require.NoError(t, err)

	ctx := f.context("GET", user)
	ctx.Token = token
	got, err = svc.Handle(ctx, service.Request{Method: "GET", Tokens: []string{"logout"}})
	require.NoError(t, err)
	assert.True(t, service.IsNoContent(got))

	_, err = f.auth.Identify(t.Context(), token)
	assert.ErrorIs(t, err, apperr.ErrCredential)
}

func TestUsersLogout_Anonymous(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(Users(), "GET", nil, []string{"logout"}, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrCredential)
}

func TestUsers_UnknownAction(t *testing.T) {
	f := newFixture(t)

	got, err := f.call(Users(), "GET", nil, []string{"register"}, nil, nil)
	require.NoError(t, err)
	assert.True(t, service.IsNoContent(got))
}

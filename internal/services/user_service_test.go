package services

import (
	"context"
	"strings"
	"testing"

	"imageupscaler/internal/database"
	"imageupscaler/internal/models"

	"github.com/stretchr/testify/require"
)

// racingUsers имитирует гонку: проверка говорит "свободно", вставка падает на уникальности.
type racingUsers struct {
	*database.Store
}

func (racingUsers) UserExists(context.Context, string, string) (bool, error) { return false, nil }

func (racingUsers) CreateUser(context.Context, *models.User) error { return database.ErrDuplicate }

func TestUserService_RegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewUserService(env.store)

	user, err := svc.Register(ctx, "alice", "a@x.com", "pw")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.NotEqual(t, "pw", user.PasswordHash)

	got, err := svc.Authenticate(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, "alice", got.Username)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewUserService(env.store)

	_, err := svc.Register(ctx, "alice", "a@x.com", "pw")
	require.NoError(t, err)

	for _, tc := range [][2]string{{"alice", "other@x.com"}, {"bob", "a@x.com"}} {
		_, err := svc.Register(ctx, tc[0], tc[1], "pw2")
		require.ErrorIs(t, err, ErrConflict)
		require.Equal(t, "User already exists", PublicMessage(err, ""))
	}
}

func TestUserService_RegisterRaceMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(racingUsers{env.store})

	_, err := svc.Register(context.Background(), "alice", "a@x.com", "pw")
	require.ErrorIs(t, err, ErrConflict)
}

func TestUserService_RegisterPasswordTooLong(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.store)

	_, err := svc.Register(context.Background(), "alice", "a@x.com", strings.Repeat("p", 73))
	require.ErrorIs(t, err, ErrValidation)
}

func TestUserService_AuthenticateFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewUserService(env.store)
	_, err := svc.Register(ctx, "alice", "a@x.com", "pw")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "Invalid email or password", PublicMessage(err, ""))

	_, err = svc.Authenticate(ctx, "nobody@x.com", "pw")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "Invalid email or password", PublicMessage(err, ""))
}

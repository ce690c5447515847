package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/rules"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

var (
	alice = storage.Record{"_id": "alice", "email": "alice@example.com"}
	bob   = storage.Record{"_id": "bob", "email": "bob@example.com"}
)

type fixture struct {
	store     *storage.Store
	protected *storage.Store
	auth      *auth.Service
	rules     *rules.Evaluator
	flags     *service.Flags
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.New([]storage.Collection{
		{Name: "games", Entries: []storage.Entry{
			{ID: "g1", Record: storage.Record{"title": "Alpha", "genre": "FPS", "maxLevel": float64(10), "_ownerId": "alice"}},
			{ID: "g2", Record: storage.Record{"title": "beta", "genre": "Arcade", "maxLevel": float64(5), "_ownerId": "bob"}},
			{ID: "g3", Record: storage.Record{"title": "Gamma", "genre": "FPS", "maxLevel": float64(70), "_ownerId": "bob"}},
		}},
		{Name: "comments", Entries: []storage.Entry{
			{ID: "c1", Record: storage.Record{"gameId": "g1", "text": "nice", "_ownerId": "bob"}},
			{ID: "c2", Record: storage.Record{"gameId": "gone", "text": "orphan", "_ownerId": "bob"}},
		}},
	})

	protected := storage.New([]storage.Collection{
		{Name: auth.UsersCollection, Entries: []storage.Entry{
			{ID: "alice", Record: storage.Record{"email": "alice@example.com", "hashedPassword": auth.Sign("secret")}},
			{ID: "bob", Record: storage.Record{"email": "bob@example.com", "hashedPassword": auth.Sign("secret")}},
		}},
		{Name: auth.SessionsCollection},
	})

	set, err := rules.Compile(nil)
	require.NoError(t, err)

	return &fixture{
		store:     store,
		protected: protected,
		auth:      auth.NewService(protected),
		rules:     rules.New(set, store, nil),
		flags:     service.NewFlags(nil),
	}
}

func (f *fixture) context(method string, user storage.Record) *service.Context {
	return &service.Context{
		Ctx:       context.Background(),
		Method:    method,
		Storage:   f.store,
		Protected: f.protected,
		Auth:      f.auth,
		Flags:     f.flags,
		Rules:     f.rules,
		User:      user,
	}
}

func (f *fixture) call(svc *service.Service, method string, user storage.Record, tokens []string, q service.Query, body any) (any, error) {
	ctx := f.context(method, user)
	return svc.Handle(ctx, service.Request{Method: method, Tokens: tokens, Query: q, Body: body})
}

func recordIDs(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]storage.Record)
	require.True(t, ok, "expected a record list, got %T", v)
	out := make([]string, len(list))
	for i, r := range list {
		out[i] = r.ID()
	}
	return out
}

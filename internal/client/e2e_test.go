//go:build e2e

package client_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sipico/practice-server/internal/client"
)

// Run against a started server:
//
//	SERVER_URL=http://localhost:3030 go test -tags e2e ./internal/client/
var serverURL string

func TestMain(m *testing.M) {
	serverURL = getEnv("SERVER_URL", client.DefaultBaseURL)

	if err := waitForService(serverURL, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "server not ready: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func waitForService(url string, timeout time.Duration) error {
	c := client.New(client.WithBaseURL(url))
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.Health(ctx)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("service not ready after %v", timeout)
}

func TestE2E_RegisterCreateDelete(t *testing.T) {
	ctx := context.Background()
	email := fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano())

	user, err := client.New(client.WithBaseURL(serverURL)).Register(ctx, client.Record{"email": email, "password": "e2e-pass"})
	require.NoError(t, err)
	token, _ := user["accessToken"].(string)
	require.NotEmpty(t, token)

	c := client.New(client.WithBaseURL(serverURL), client.WithAccessToken(token))
	created, err := c.Create(ctx, "ideas", client.Record{"title": "e2e idea"})
	require.NoError(t, err)
	id, _ := created["_id"].(string)
	require.Equal(t, user["_id"], created["_ownerId"])

	_, err = c.Delete(ctx, "ideas", id)
	require.NoError(t, err)

	_, err = c.Get(ctx, "ideas", id)
	require.ErrorIs(t, err, client.ErrNotFound)

	require.NoError(t, c.Logout(ctx))
}

func TestE2E_ThrottleToggle(t *testing.T) {
	ctx := context.Background()
	c := client.New(client.WithBaseURL(serverURL))

	before, err := c.Throttle(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		//nolint:errcheck
		c.SetThrottle(context.Background(), before)
	})

	require.NoError(t, c.SetThrottle(ctx, !before))
	after, err := c.Throttle(ctx)
	require.NoError(t, err)
	require.Equal(t, !before, after)
}

package main

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	flags := func(extra ...string) []string {
		return append([]string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--environment", "development",
			"--s3-bucket", "vidtube-test",
			"--s3-endpoint", "http://localhost:9000",
		}, extra...)
	}

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		err := run(ctx, os.Getenv, os.Getwd, flags(
			"--database", pg.DSN,
			"--access-secret", "access",
			"--refresh-secret", "refresh",
		))

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("in memory store", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, func(string) string { return "" }, os.Getwd, flags(
			"--access-secret", "access",
			"--refresh-secret", "refresh",
		))

		require.NoError(t, err, "empty database must fall back to memory store")
	})

	t.Run("stop with config error", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		// Try to run without secrets. Must fail
		err := run(ctx, func(string) string { return "" }, os.Getwd, flags(
			"--database", pg.DSN,
		))

		require.Error(t, err, "on incorrect config should return error")
	})
}

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultPostgresImage = "postgres:16-alpine"

// startContainer runs Postgres through the Docker CLI on a random host port
// and returns the connection string and a cleanup function.
// POSTGRES_IMAGE overrides the image.
func startContainer(ctx context.Context) (string, func(), error) {
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, fmt.Errorf("docker not available and TEST_DATABASE_URL not set")
	}

	image := os.Getenv("POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=healthtrack",
		"-e", "POSTGRES_PASSWORD=healthtrack",
		"-e", "POSTGRES_DB=healthtrack",
		image,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w\noutput: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	cleanup := func() {
		_ = exec.Command("docker", "rm", "-f", id).Run()
	}

	out, err = exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("docker port: %w", err)
	}
	// "127.0.0.1:49153", possibly followed by an IPv6 line.
	addr := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])

	dsn := fmt.Sprintf("postgres://healthtrack:healthtrack@%s/healthtrack?sslmode=disable", addr)
	if err := waitForPostgres(ctx, dsn, 30*time.Second); err != nil {
		logs, _ := exec.Command("docker", "logs", "--tail", "20", id).CombinedOutput()
		cleanup()
		return "", nil, fmt.Errorf("%w\ncontainer logs:\n%s", err, logs)
	}
	return dsn, cleanup, nil
}

// waitForPostgres polls until a connection succeeds or timeout elapses.
func waitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		conn, err := pgx.Connect(ctx, dsn)
		if err == nil {
			err = conn.Ping(ctx)
			conn.Close(context.Background())
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", timeout, lastErr)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

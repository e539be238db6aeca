package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	testMongoOnce sync.Once
	testMongoURI  string
	testMongoErr  error
)

// loadTestEnv reads .env from the project root, then falls back to a
// disposable mongo container when MONGO_URI is still empty.
func loadTestEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "..", "..")
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil {
		_ = godotenv.Load()
	}

	testMongoURI = os.Getenv("MONGO_URI")
	if testMongoURI != "" {
		return
	}
	testMongoURI, testMongoErr = startMongoContainer()
}

func startMongoContainer() (string, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return "", fmt.Errorf("could not construct docker pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return "", fmt.Errorf("could not connect to docker: %w", err)
	}
	pool.MaxWait = 60 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return "", fmt.Errorf("could not start mongo container: %w", err)
	}
	_ = resource.Expire(300)

	uri := fmt.Sprintf("mongodb://%s", resource.GetHostPort("27017/tcp"))
	if err := pool.Retry(func() error {
		client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return client.Ping(context.Background(), nil)
	}); err != nil {
		return "", fmt.Errorf("mongo container did not become ready: %w", err)
	}
	return uri, nil
}

// SetupTestDB returns a database with the given collections dropped.
// The test is skipped when neither MONGO_URI nor docker is available.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}
	testMongoOnce.Do(loadTestEnv)
	if testMongoURI == "" {
		t.Skipf("mongo unavailable: %v", testMongoErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(testMongoURI))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database(dbName)
	for _, collection := range collections {
		_ = db.Collection(collection).Drop(ctx)
	}
	return db
}

var (
	testRedisOnce sync.Once
	testRedisAddr string
	testRedisErr  error
)

func startRedisContainer() (string, error) {
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		return addr, nil
	}
	pool, err := dockertest.NewPool("")
	if err != nil {
		return "", fmt.Errorf("could not construct docker pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return "", fmt.Errorf("could not connect to docker: %w", err)
	}
	pool.MaxWait = 30 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{Repository: "redis", Tag: "7-alpine"},
		func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{Name: "no"}
		})
	if err != nil {
		return "", fmt.Errorf("could not start redis container: %w", err)
	}
	_ = resource.Expire(300)

	addr := resource.GetHostPort("6379/tcp")
	if err := pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	}); err != nil {
		return "", fmt.Errorf("redis container did not become ready: %w", err)
	}
	return addr, nil
}

// SetupTestRedis returns a flushed redis client from REDIS_TEST_ADDR or a docker container.
// The test is skipped when neither is available.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testRedisOnce.Do(func() { testRedisAddr, testRedisErr = startRedisContainer() })
	if testRedisAddr == "" {
		t.Skipf("redis unavailable: %v", testRedisErr)
	}
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

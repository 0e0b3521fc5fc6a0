package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoTestTimeout = 10 * time.Second

// TestMain starts a single node MongoDB replica set when integration tests
// are enabled. Transactions and change streams need a replica set.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}
	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	if _, _, err := mongoC.Exec(ctx, []string{"mongosh", "--quiet", "--eval",
		`rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]})`}); err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to initiate replica set: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}
	_ = os.Setenv("MONGO_TEST_URI", fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func openMongo(t *testing.T) *Mongo {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run MongoDB tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoTestTimeout)
	defer cancel()

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return client.Ping(ctx, readpref.Primary()) == nil
	}, mongoTestTimeout, 200*time.Millisecond)

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s, err := NewMongo(ctx, client, dbName, MongoOptions{PollInterval: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoContract(t *testing.T) {
	if os.Getenv("MONGO_TEST_URI") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run MongoDB tests")
	}
	runContract(t, func(t *testing.T) Store {
		return openMongo(t)
	})
}

//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker for the duration of the test and
// returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("civic-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeExport writes a small export in the legacy column vintage.
func writeExport(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "csb")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := "REQUESTID,DATETIMEINIT,PROBLEMCODE,NEIGHBORHOOD,STATUS,DATETIMECLOSED,SRX,SRY\n" +
		"1,2025-03-02 10:15:00.000,Pothole,Soulard,Closed,2025-03-05 09:00:00.000,-10040000.00,4668000.00\n" +
		"2,2025-03-03 11:30:00.000,Graffiti,Soulard,Open,,0,0\n" +
		"3,2024-07-04 18:00:00.000,Pothole,Downtown,Closed,2024-07-06 08:00:00.000,-10039000.00,4670000.00\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "csb_2025.csv"), []byte(content), 0o644))
	return dir
}

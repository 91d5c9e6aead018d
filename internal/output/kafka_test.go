package output

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_PublishesEventsKeyedByRun(t *testing.T) {
	w := &fakeWriter{}
	s := newKafkaSink(w, 0)

	require.NoError(t, writeAll(s, sampleRun()))
	require.NoError(t, s.Write("ignored"))
	require.NoError(t, s.Close())

	require.Len(t, w.msgs, 5)
	assert.True(t, w.closed)
	for _, m := range w.msgs {
		assert.Equal(t, "run-1", string(m.Key))
	}
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, EventRunStarted, string(w.msgs[0].Headers[0].Value))

	var e map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[2].Value, &e))
	assert.Equal(t, "rates", e["asset"])
	assert.Equal(t, "failed", e["status"])
}

func TestKafkaSink_WrapsWriteErrors(t *testing.T) {
	s := newKafkaSink(&fakeWriter{err: errors.New("leader not available")}, time.Second)
	err := s.Write(sampleRun()[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish run.started")
}

func TestNewKafkaSink_Validation(t *testing.T) {
	_, err := NewKafkaSink(KafkaConfig{Brokers: []string{" "}, Topic: "t"})
	assert.Error(t, err)
	_, err = NewKafkaSink(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestKafkaSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("sidas-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	s, err := NewKafkaSink(KafkaConfig{Brokers: brokers, Topic: "sidas-runs", WriteTimeout: 30 * time.Second})
	require.NoError(t, err)
	require.NoError(t, writeAll(s, sampleRun()))
	require.NoError(t, s.Close())

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: "sidas-runs", Partition: 0})
	defer r.Close()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var types []string
	for len(types) < 5 {
		m, err := r.ReadMessage(readCtx)
		require.NoError(t, err)
		var e Event
		require.NoError(t, json.Unmarshal(m.Value, &e))
		types = append(types, e.Type)
	}
	assert.Equal(t, EventRunStarted, types[0])
	assert.Equal(t, EventRunFinished, types[4])
	assert.Equal(t, 3, strings.Count(strings.Join(types, ","), EventAssetResult))
}

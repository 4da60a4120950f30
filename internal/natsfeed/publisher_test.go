package natsfeed

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camera.report/internal/pipeline"
	"github.com/banshee-data/camera.report/internal/records"
)

var _ pipeline.Sink = (*Publisher)(nil)

type sent struct {
	subject string
	data    []byte
}

func sample() records.Record {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return records.NewRecord(1, 7, "car", 120, 60, 40, 20, 0.5, ts)
}

func TestConnect_EmptyURLIsDisabled(t *testing.T) {
	p, err := Connect("", "camera.detections", "cam")
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NoError(t, p.Write(sample()))
	assert.NoError(t, p.Close())

	published, failed := p.Counts()
	assert.Zero(t, published)
	assert.Zero(t, failed)
}

func TestWrite_PublishesJSON(t *testing.T) {
	var got []sent
	p := newPublisher("camera.detections", "10.0.0.5_554", func(subject string, data []byte) error {
		got = append(got, sent{subject, data})
		return nil
	})
	p.SetRun("run-1")

	require.NoError(t, p.Write(sample()))
	require.Len(t, got, 1)
	assert.Equal(t, "camera.detections", got[0].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(got[0].data, &msg))
	assert.Equal(t, "10.0.0.5_554", msg.Camera)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, 7, msg.Record.ObjectID)
	assert.Equal(t, "car", msg.Record.VehicleType)
	assert.Equal(t, 100.0, msg.Record.BBLeft)
	assert.True(t, msg.Record.Timestamp.Equal(sample().Timestamp))

	published, failed := p.Counts()
	assert.Equal(t, 1, published)
	assert.Zero(t, failed)
}

func TestWrite_PublishFailureIsCounted(t *testing.T) {
	p := newPublisher("s", "cam", func(string, []byte) error {
		return errors.New("nats: connection closed")
	})

	for i := 0; i < 3; i++ {
		assert.NoError(t, p.Write(sample()))
	}
	published, failed := p.Counts()
	assert.Zero(t, published)
	assert.Equal(t, 3, failed)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "s", "cam")
	assert.Error(t, err)
}

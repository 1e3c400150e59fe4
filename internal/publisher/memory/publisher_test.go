package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEncodedMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "audits", map[string]string{"job_id": "job-1"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "audits", msgs[0].Topic)
	require.Equal(t, "other", msgs[1].Topic)

	var got map[string]string
	require.NoError(t, msgs[0].Decode(&got))
	require.Equal(t, "job-1", got["job_id"])

	msgs[0].Topic = "modified"
	require.Equal(t, "audits", pub.Messages()[0].Topic)
}

func TestPublisherRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "audits", make(chan int))
	require.Error(t, err)
	require.Empty(t, pub.Messages())
}

package outbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRecordsGroupsByTopic(t *testing.T) {
	msgs := []Message{
		{ID: 1, EventType: "activity.zones_computed", Topic: "zone_time_events", PartitionKey: "7", Payload: json.RawMessage(`{"activity_id":100}`)},
		{ID: 2, EventType: "activity.zones_computed", Topic: "zone_time_events", PartitionKey: "8", Payload: json.RawMessage(`{"activity_id":101}`)},
		{ID: 3, EventType: "summary.updated", Topic: "zone_summary_events", PartitionKey: "7", Payload: json.RawMessage(`{"year":2024}`)},
	}

	batches := buildRecords(msgs)
	require.Len(t, batches, 2)
	require.Len(t, batches["zone_time_events"], 2)
	require.Len(t, batches["zone_summary_events"], 1)

	record := batches["zone_time_events"][0]
	require.Equal(t, "7", string(record.Key))
	require.JSONEq(t, `{"activity_id":100}`, string(record.Value))
	require.Len(t, record.Headers, 1)
	require.Equal(t, "event_type", record.Headers[0].Key)
	require.Equal(t, "activity.zones_computed", string(record.Headers[0].Value))
	require.False(t, record.Time.IsZero())
}

func TestBuildRecordsEmptyBatch(t *testing.T) {
	require.Empty(t, buildRecords(nil))
}

func TestWriterForTopicReusesWriters(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"})

	first := p.writerForTopic("zone_time_events")
	second := p.writerForTopic("zone_time_events")
	require.Same(t, first, second)
	require.NotSame(t, first, p.writerForTopic("zone_summary_events"))

	require.NoError(t, p.Close())
}

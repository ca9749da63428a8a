package service

// RecordingEvent is a real-time event about a recording under analysis.
type RecordingEvent struct {
	RecordingID string
	MapName     string
	Type        string
	// Metric names the metric the event belongs to, or is empty for events
	// about the whole recording.
	Metric string
	Data   any
}

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastRecordingEvent(e RecordingEvent)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastRecordingEvent(RecordingEvent) {}

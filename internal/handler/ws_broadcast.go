package handler

import "github.com/freeeve/roundscope/internal/service"

// BroadcastRecordingEvent implements service.Broadcaster using the WebSocket
// hub. Subscribers of the recording and of its map receive the event.
func (h *Hub) BroadcastRecordingEvent(e service.RecordingEvent) {
	h.broadcast(WSEvent{
		Type:        e.Type,
		RecordingID: e.RecordingID,
		Map:         e.MapName,
		Data:        e.Data,
	}, e.Metric, recordingTopic(e.RecordingID), mapTopic(e.MapName))
}

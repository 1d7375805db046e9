package dashboard

import (
	"encoding/json"
	"time"

	"github.com/ajandahq/ajanda-sync/internal/reconciler"
)

// Sink adapts the dashboard server to the reconciler's EventSink.
// Broadcast drops messages instead of blocking, so a slow client can
// never stall a sync pass.
type Sink struct {
	server *Server
}

// NewSink wraps a running dashboard server.
func NewSink(server *Server) *Sink {
	return &Sink{server: server}
}

func (s *Sink) SyncStarted(ownerID string) {
	s.send(MessageTypeSyncStarted, SyncStartedData{OwnerID: ownerID})
}

func (s *Sink) RecordPushed(collection, id string) {
	s.send(MessageTypeRecordPushed, RecordPushedData{Collection: collection, RecordID: id})
}

func (s *Sink) PushFailed(collection, id string, err error) {
	s.send(MessageTypePushFailed, PushFailedData{Collection: collection, RecordID: id, Error: err.Error()})
}

func (s *Sink) SyncCompleted(ownerID string, stats *reconciler.Stats, took time.Duration) {
	s.send(MessageTypeSyncComplete, SyncCompleteData{
		OwnerID:       ownerID,
		Pushed:        stats.Tasks.Pushed + stats.Habits.Pushed + stats.Completions.Pushed,
		PushFailed:    stats.Tasks.PushFailed + stats.Habits.PushFailed + stats.Completions.PushFailed,
		Pulled:        stats.Tasks.Pulled + stats.Habits.Pulled + stats.Completions.Pulled,
		SkippedDirty:  stats.Tasks.SkippedDirty + stats.Habits.SkippedDirty + stats.Completions.SkippedDirty,
		ReferenceRows: stats.ReferenceRows,
		Duration:      took,
	})
}

func (s *Sink) send(typ MessageType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	s.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}

package engine

import (
	"encoding/json"
	"fmt"
)

// mpv JSON IPC wire types. One JSON object per line in both directions;
// replies echo the request_id, everything else is an event.

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage covers both replies (request_id echoes the request) and events.
// Data carries the reply payload or, for property-change events, the value.
type ipcMessage struct {
	RequestID int64           `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	Event  string `json:"event,omitempty"`
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
}

const (
	ipcEventPropertyChange = "property-change"
	ipcEventFileLoaded     = "file-loaded"
	ipcEventEndFile        = "end-file"

	propTimePos  = "time-pos"
	propDuration = "duration"
	propPause    = "pause"
)

// decodeMessage parses one IPC line.
func decodeMessage(line []byte) (ipcMessage, error) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return ipcMessage{}, fmt.Errorf("decode ipc message: %w", err)
	}
	return msg, nil
}

// mapEndReason translates mpv end-file reasons into the adapter contract.
// Anything the engine reports as a deliberate termination maps to stop.
func mapEndReason(reason string) EndReason {
	switch reason {
	case "eof":
		return ReasonEOF
	case "stop", "quit":
		return ReasonStop
	case "error":
		return ReasonError
	default:
		return ReasonStop
	}
}

// trackPayload mirrors one entry of mpv's track-list property.
type trackPayload struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Lang     string `json:"lang"`
	Selected bool   `json:"selected"`
	External bool   `json:"external"`
}

// decodeTracks parses a track-list payload and keeps entries of wantType.
func decodeTracks(data json.RawMessage, wantType string) ([]Track, error) {
	var payload []trackPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode track list: %w", err)
	}
	tracks := make([]Track, 0, len(payload))
	for _, entry := range payload {
		if entry.Type != wantType {
			continue
		}
		tracks = append(tracks, Track{
			ID:       entry.ID,
			Type:     entry.Type,
			Title:    entry.Title,
			Lang:     entry.Lang,
			Selected: entry.Selected,
			External: entry.External,
		})
	}
	return tracks, nil
}

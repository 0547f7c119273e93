package engine

import (
	"encoding/json"
	"testing"
)

func TestDecodeMessageReply(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"request_id":7,"error":"success","data":123.5}`))
	if err != nil {
		t.Fatalf("decodeMessage failed: %v", err)
	}
	if msg.RequestID != 7 || msg.Error != "success" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	var value float64
	if err := json.Unmarshal(msg.Data, &value); err != nil || value != 123.5 {
		t.Fatalf("unexpected data: %s", msg.Data)
	}
}

func TestDecodeMessagePropertyChange(t *testing.T) {
	msg, err := decodeMessage([]byte(`{"event":"property-change","id":1,"name":"time-pos","data":42.25}`))
	if err != nil {
		t.Fatalf("decodeMessage failed: %v", err)
	}
	if msg.Event != ipcEventPropertyChange || msg.Name != propTimePos {
		t.Fatalf("unexpected event: %+v", msg)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, err := decodeMessage([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMapEndReason(t *testing.T) {
	cases := []struct {
		raw  string
		want EndReason
	}{
		{"eof", ReasonEOF},
		{"stop", ReasonStop},
		{"quit", ReasonStop},
		{"error", ReasonError},
		{"redirect", ReasonStop},
		{"", ReasonStop},
	}
	for _, tc := range cases {
		if got := mapEndReason(tc.raw); got != tc.want {
			t.Fatalf("mapEndReason(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestDecodeTracksFiltersByType(t *testing.T) {
	payload := json.RawMessage(`[
        {"id":1,"type":"video","selected":true},
        {"id":1,"type":"audio","title":"Main","lang":"eng","selected":true},
        {"id":2,"type":"audio","title":"Commentary","lang":"eng"},
        {"id":1,"type":"sub","lang":"eng","external":true}
    ]`)

	audio, err := decodeTracks(payload, "audio")
	if err != nil {
		t.Fatalf("decodeTracks failed: %v", err)
	}
	if len(audio) != 2 {
		t.Fatalf("expected 2 audio tracks, got %v", audio)
	}
	if audio[0].Title != "Main" || !audio[0].Selected {
		t.Fatalf("unexpected first track: %+v", audio[0])
	}

	subs, err := decodeTracks(payload, "sub")
	if err != nil {
		t.Fatalf("decodeTracks failed: %v", err)
	}
	if len(subs) != 1 || !subs[0].External {
		t.Fatalf("unexpected subtitle tracks: %v", subs)
	}
}

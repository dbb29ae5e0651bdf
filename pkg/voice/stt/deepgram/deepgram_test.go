package deepgram

import (
	"net/url"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/voice/stt"
)

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}

	p, err := New("key", WithModel("base"), WithLanguage("fr"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "base" || p.language != "fr" {
		t.Fatalf("options not applied: model=%q language=%q", p.model, p.language)
	}
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	p, _ := New("key")

	raw, err := p.buildURL(stt.StreamConfig{SampleRate: 44100, Channels: 2, Language: "de"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	for key, want := range map[string]string{
		"model":           "nova-3",
		"language":        "de",
		"sample_rate":     "44100",
		"channels":        "2",
		"interim_results": "true",
		"encoding":        "linear16",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestBuildURLDefaults(t *testing.T) {
	t.Parallel()

	p, _ := New("key", WithLanguage("en-GB"))

	raw, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()

	if got := q.Get("language"); got != "en-GB" {
		t.Errorf("language = %q, want en-GB", got)
	}
	if got := q.Get("sample_rate"); got != "16000" {
		t.Errorf("sample_rate = %q, want 16000", got)
	}
	if q.Has("channels") {
		t.Error("channels should be omitted when zero")
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	t.Run("final result", func(t *testing.T) {
		t.Parallel()
		msg := []byte(`{
			"type": "Results",
			"is_final": true,
			"start": 1.5,
			"channel": {"alternatives": [{"transcript": "hello there", "confidence": 0.97}]}
		}`)
		tr, ok := parseResponse(msg)
		if !ok {
			t.Fatal("expected ok")
		}
		if !tr.IsFinal || tr.Text != "hello there" || tr.Confidence != 0.97 {
			t.Fatalf("unexpected transcript: %+v", tr)
		}
		if tr.Timestamp != 1500*time.Millisecond {
			t.Fatalf("timestamp = %v, want 1.5s", tr.Timestamp)
		}
	})

	t.Run("interim result", func(t *testing.T) {
		t.Parallel()
		msg := []byte(`{
			"type": "Results",
			"is_final": false,
			"channel": {"alternatives": [{"transcript": "hel", "confidence": 0.4}]}
		}`)
		tr, ok := parseResponse(msg)
		if !ok || tr.IsFinal {
			t.Fatalf("expected interim transcript, got ok=%v %+v", ok, tr)
		}
	})

	t.Run("empty transcript dropped", func(t *testing.T) {
		t.Parallel()
		msg := []byte(`{
			"type": "Results",
			"is_final": true,
			"channel": {"alternatives": [{"transcript": "", "confidence": 0}]}
		}`)
		if _, ok := parseResponse(msg); ok {
			t.Fatal("empty transcript should be ignored")
		}
	})

	t.Run("non-results message ignored", func(t *testing.T) {
		t.Parallel()
		if _, ok := parseResponse([]byte(`{"type":"Metadata"}`)); ok {
			t.Fatal("metadata message should be ignored")
		}
	})

	t.Run("malformed JSON ignored", func(t *testing.T) {
		t.Parallel()
		if _, ok := parseResponse([]byte(`{nope`)); ok {
			t.Fatal("malformed message should be ignored")
		}
	})
}

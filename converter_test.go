package backedqueue_test

import (
	"bytes"
	"testing"

	backedqueue "github.com/timzifer/backed_queue"
)

type measurement struct {
	Sensor string  `json:"sensor"`
	Value  float64 `json:"value"`
}

func TestJSONConverterRoundTrip(t *testing.T) {
	conv := backedqueue.JSONConverter[measurement]{}
	want := measurement{Sensor: "temp-1", Value: 21.5}

	var buf bytes.Buffer
	if err := conv.Serialize(want, &buf); err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	got, err := conv.Deserialize(&buf)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

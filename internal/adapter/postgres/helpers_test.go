package postgres

import (
	"testing"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
)

func TestJSONBListRoundTrip(t *testing.T) {
	data, err := jsonbList[agent.Failure]("failures", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Fatalf("nil list encoded as %s, want []", data)
	}

	in := []agent.Failure{{Agent: "appointment", Error: "calendar down"}}
	data, err = jsonbList("failures", in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := decodeJSONBList[agent.Failure]("failures", data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip = %+v", out)
	}

	if _, err := decodeJSONBList[agent.Failure]("failures", []byte("{")); err == nil {
		t.Fatal("expected error for corrupt column")
	}
	if empty, _ := decodeJSONBList[agent.Document]("documents", nil); empty == nil || len(empty) != 0 {
		t.Fatalf("empty column = %#v, want []", empty)
	}
}

func TestSpokenAt(t *testing.T) {
	if spokenAt(time.Time{}) != nil {
		t.Error("zero time must be stored as NULL")
	}
	now := time.Now()
	if spokenAt(now) != now {
		t.Error("non-zero time must pass through")
	}
}

package lineage

import "testing"

func TestContentDataIDStableForSameInput(t *testing.T) {
	a := ContentDataID("sensor-1", []byte("reading=42"))
	b := ContentDataID("sensor-1", []byte("reading=42"))
	if a != b {
		t.Fatalf("expected stable id, got %q vs %q", a, b)
	}
}

func TestContentDataIDDiffersBySourceOrContent(t *testing.T) {
	base := ContentDataID("sensor-1", []byte("reading=42"))
	if other := ContentDataID("sensor-2", []byte("reading=42")); other == base {
		t.Fatal("expected different source to change the id")
	}
	if other := ContentDataID("sensor-1", []byte("reading=43")); other == base {
		t.Fatal("expected different content to change the id")
	}
}

package persist

import (
	"errors"
	"testing"

	"sidas/internal/dataset"
)

func TestCodecFor(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "", want: "json"},
		{format: "JSON", want: "json"},
		{format: "jsonl", want: "ndjson"},
		{format: "yml", want: "yaml"},
		{format: "parquet", wantErr: true},
	}
	for _, tt := range tests {
		c, err := CodecFor(tt.format)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("CodecFor(%q) expected error", tt.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CodecFor(%q) error: %v", tt.format, err)
		}
		if c.Name() != tt.want {
			t.Fatalf("CodecFor(%q) = %s, want %s", tt.format, c.Name(), tt.want)
		}
	}
}

func TestJSONCodec_StableEncoding(t *testing.T) {
	a, err := JSONCodec{}.Encode(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := JSONCodec{}.Encode(map[string]any{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("encoding not stable: %s vs %s", a, b)
	}
}

func TestNDJSONCodec_RoundTripRecords(t *testing.T) {
	in := dataset.Records{{"id": 1.0, "name": "a"}, {"id": 2.0, "name": "b"}}
	data, err := NDJSONCodec{}.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := NDJSONCodec{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rs := out.(dataset.Records)
	if len(rs) != 2 || rs[1]["name"] != "b" {
		t.Fatalf("unexpected records: %v", rs)
	}
}

func TestNDJSONCodec_RejectsScalars(t *testing.T) {
	if _, err := (NDJSONCodec{}).Encode("nope"); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap("localfs", "save", "k", cause)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence classification, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}

	nf := NotFound("memory", "k")
	if Wrap("memory", "load", "k", nf) != nf {
		t.Fatalf("Wrap must pass not-found errors through unchanged")
	}
	if !errors.Is(nf, ErrNotFound) {
		t.Fatalf("NotFound must match ErrNotFound")
	}

	var ie error = &IntegrityError{Asset: "a", Key: "k", Err: nf}
	if !errors.Is(ie, ErrIntegrity) {
		t.Fatalf("IntegrityError must match ErrIntegrity")
	}
}

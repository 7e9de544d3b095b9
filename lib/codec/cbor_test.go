// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

// sampleInode is a representative dump record using cbor struct tags,
// the convention for types that only ever round-trip through CBOR.
type sampleInode struct {
	Inode uint32 `cbor:"inode"`
	Name  string `cbor:"name,omitempty"`
	Mode  uint32 `cbor:"mode"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleInode{Inode: 3, Name: "etc", Mode: 0o040755}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleInode
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	node := sampleInode{Inode: 1, Name: "bin", Mode: 0o040755}

	first, err := Marshal(node)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(node)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	nodes := []sampleInode{
		{Inode: 0, Name: "", Mode: 0o040755},
		{Inode: 1, Name: "bin", Mode: 0o040755},
		{Inode: 2, Name: "passwd", Mode: 0o100644},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, node := range nodes {
		if err := encoder.Encode(node); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range nodes {
		var got sampleInode
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withName := sampleInode{Inode: 5, Name: "x", Mode: 0o100644}
	withoutName := sampleInode{Inode: 5, Mode: 0o100644}

	dataWith, err := Marshal(withName)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutName)
	if err != nil {
		t.Fatal(err)
	}

	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var node sampleInode
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &node); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestByteStringRoundtrip(t *testing.T) {
	// A digest field must encode as a CBOR byte string (major type
	// 2), not a text string — this is how lcfs.DumpTree carries
	// 32-byte content digests.
	type envelope struct {
		Digest []byte `cbor:"digest"`
	}

	original := envelope{Digest: bytes.Repeat([]byte{0xab}, 32)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !bytes.Equal(decoded.Digest, original.Digest) {
		t.Errorf("byte string roundtrip: got %x, want %x", decoded.Digest, original.Digest)
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"name": "etc"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if !strings.Contains(notation, `"name"`) {
		t.Errorf("notation %q does not contain \"name\"", notation)
	}
	if !strings.Contains(notation, `"etc"`) {
		t.Errorf("notation %q does not contain \"etc\"", notation)
	}
}

func TestDiagnoseFirst(t *testing.T) {
	item1, err := Marshal("hello")
	if err != nil {
		t.Fatalf("Marshal item 1: %v", err)
	}
	item2, err := Marshal(int64(42))
	if err != nil {
		t.Fatalf("Marshal item 2: %v", err)
	}

	var sequence []byte
	sequence = append(sequence, item1...)
	sequence = append(sequence, item2...)

	notation, remaining, err := DiagnoseFirst(sequence)
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	if !strings.Contains(notation, `"hello"`) {
		t.Errorf("first item notation %q does not contain \"hello\"", notation)
	}
	if len(remaining) == 0 {
		t.Fatal("expected remaining bytes after first item")
	}

	notation2, remaining2, err := DiagnoseFirst(remaining)
	if err != nil {
		t.Fatalf("DiagnoseFirst second: %v", err)
	}
	if !strings.Contains(notation2, "42") {
		t.Errorf("second item notation %q does not contain \"42\"", notation2)
	}
	if len(remaining2) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining2))
	}
}

func BenchmarkMarshal(b *testing.B) {
	node := sampleInode{Inode: 7, Name: "lib", Mode: 0o040755}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Marshal(node)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	node := sampleInode{Inode: 7, Name: "lib", Mode: 0o040755}
	data, err := Marshal(node)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var decoded sampleInode
		Unmarshal(data, &decoded)
	}
}

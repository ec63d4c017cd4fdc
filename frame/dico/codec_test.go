package dico

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New()
	if err := d.AddU16(1, 10, 0xbeef); err != nil {
		t.Fatal(err)
	}
	if err := d.AddU32(1, 11, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := d.AddU64(2, 1, 1<<40); err != nil {
		t.Fatal(err)
	}
	if err := d.AddString(3, 1, "hello/world.txt"); err != nil {
		t.Fatal(err)
	}
	if err := d.AddBool(1, 5, true); err != nil {
		t.Fatal(err)
	}

	buf, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != d.Len() {
		t.Fatalf("round trip changed attribute count: want %d got %d", d.Len(), got.Len())
	}
	if v, ok := got.GetU16(1, 10); !ok || v != 0xbeef {
		t.Errorf("GetU16: got %v, %v", v, ok)
	}
	if v, ok := got.GetU32(1, 11); !ok || v != 0xdeadbeef {
		t.Errorf("GetU32: got %v, %v", v, ok)
	}
	if v, ok := got.GetU64(2, 1); !ok || v != 1<<40 {
		t.Errorf("GetU64: got %v, %v", v, ok)
	}
	if v, ok := got.GetString(3, 1); !ok || v != "hello/world.txt" {
		t.Errorf("GetString: got %q, %v", v, ok)
	}
	if v, ok := got.GetBool(1, 5); !ok || !v {
		t.Errorf("GetBool: got %v, %v", v, ok)
	}
}

func TestEncodeEmpty(t *testing.T) {
	d := New()
	buf, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty dictionary, got %d attrs", got.Len())
	}
}

func TestAddGenericOverwritesDuplicateKey(t *testing.T) {
	d := New()
	if err := d.AddU16(1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.AddU16(1, 1, 2); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected overwrite, got %d attrs", d.Len())
	}
	if v, _ := d.GetU16(1, 1); v != 2 {
		t.Fatalf("expected overwritten value 2, got %d", v)
	}
}

func TestAddGenericRejectsOversizeValue(t *testing.T) {
	d := New()
	big := make([]byte, MaxValueSize+1)
	if err := d.AddGeneric(1, 1, big, TypeRaw); err == nil {
		t.Fatal("expected error for value exceeding MaxValueSize")
	}
}

func TestDecodeTruncated(t *testing.T) {
	d := New()
	_ = d.AddString(1, 1, "abc")
	buf, _ := d.Encode()
	if _, err := Decode(buf[:len(buf)-2]); err == nil {
		t.Fatal("expected error decoding truncated buffer")
	}
}

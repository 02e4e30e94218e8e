package dwarfx

import "testing"

func TestStringAt(t *testing.T) {
	d := &Data{strSection: []byte("foo\x00bar\x00")}

	got, err := d.stringAt(0)
	if err != nil || got != "foo" {
		t.Fatalf("stringAt(0) = (%q, %v), want (foo, nil)", got, err)
	}

	got, err = d.stringAt(4)
	if err != nil || got != "bar" {
		t.Fatalf("stringAt(4) = (%q, %v), want (bar, nil)", got, err)
	}

	if _, err := d.stringAt(100); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := d.stringAt(-1); err == nil {
		t.Fatal("expected negative-offset error")
	}
}

func TestResolveStringAltNoAltlink(t *testing.T) {
	d := &Data{}
	if _, err := d.ResolveStringAlt(0); err == nil {
		t.Fatal("expected error when Alt is nil")
	}
	if _, err := d.ResolveRefAlt(0); err == nil {
		t.Fatal("expected error when Alt is nil")
	}
}

func TestResolveStringAltDelegatesToAlt(t *testing.T) {
	d := &Data{Alt: &Data{strSection: []byte("inlined_fn\x00")}}
	got, err := d.ResolveStringAlt(0)
	if err != nil || got != "inlined_fn" {
		t.Fatalf("ResolveStringAlt = (%q, %v), want (inlined_fn, nil)", got, err)
	}
}

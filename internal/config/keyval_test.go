package config

import (
	"reflect"
	"testing"
)

func TestParseKeyValBasic(t *testing.T) {
	key, values, ok := parseKeyVal("interval = 30")
	if !ok || key != "interval" || !reflect.DeepEqual(values, []string{"30"}) {
		t.Fatalf("got key=%q values=%v ok=%v", key, values, ok)
	}
}

func TestParseKeyValListAndComment(t *testing.T) {
	key, values, ok := parseKeyVal("inet pinghosts = 8.8.8.8, 1.1.1.1 # primary and secondary")
	if !ok {
		t.Fatal("expected ok = true")
	}
	if key != "inet pinghosts" {
		t.Fatalf("key = %q", key)
	}
	if !reflect.DeepEqual(values, []string{"8.8.8.8", "1.1.1.1"}) {
		t.Fatalf("values = %v", values)
	}
}

func TestParseKeyValEscapedDelimiters(t *testing.T) {
	// 3\,4,4 => "3,4" and "4"
	_, values, ok := parseKeyVal(`key = 3\,4,4`)
	if !ok {
		t.Fatal("expected ok = true")
	}
	want := []string{"3,4", "4"}
	if !reflect.DeepEqual(values, want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
}

func TestParseKeyValEscapedBackslash(t *testing.T) {
	// \\\\tunkki\\srv => "\\tunkki\srv" (single value, no list split)
	_, values, ok := parseKeyVal(`key = \\\\tunkki\\srv`)
	if !ok || len(values) != 1 {
		t.Fatalf("got values=%v ok=%v", values, ok)
	}
	if values[0] != `\\tunkki\srv` {
		t.Fatalf("value = %q, want %q", values[0], `\\tunkki\srv`)
	}
}

func TestParseKeyValCommentOnlyLineIsEmpty(t *testing.T) {
	_, _, ok := parseKeyVal("# just a comment")
	if ok {
		t.Fatal("expected ok = false for comment-only line")
	}
}

func TestParseKeyValNoEqualsIsInvalid(t *testing.T) {
	_, _, ok := parseKeyVal("not a key value line")
	if ok {
		t.Fatal("expected ok = false when there is no delimiter")
	}
}

func TestApplyKeyRejectsUnrecognized(t *testing.T) {
	snap := Defaults()
	if err := applyKey(snap, "bogus", []string{"x"}); err == nil {
		t.Fatal("expected error for unrecognized key")
	}
}

func TestApplyKeyInterval(t *testing.T) {
	snap := Defaults()
	if err := applyKey(snap, "interval", []string{"45"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Interval.Seconds() != 45 {
		t.Fatalf("interval = %v, want 45s", snap.Interval)
	}
}

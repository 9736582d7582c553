package core

import (
	"reflect"
	"testing"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("qualified_name", "pkg::add")
	m.Set("analyzer", "dataflow")
	m.Set("qualified_name", "pkg::add2") // update, should not move position

	if got, want := m.Keys(), []string{"qualified_name", "analyzer"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	v, ok := m.Get("qualified_name")
	if !ok || v != "pkg::add2" {
		t.Fatalf("expected updated value, got %q ok=%v", v, ok)
	}
}

func TestOrderedMapMergeLastWriteWins(t *testing.T) {
	a := NewOrderedMap()
	a.Set("k1", "v1")
	b := NewOrderedMap()
	b.Set("k1", "v2")
	b.Set("k2", "v3")

	a.Merge(b)
	if v, _ := a.Get("k1"); v != "v2" {
		t.Fatalf("expected merge to overwrite k1, got %q", v)
	}
	if v, _ := a.Get("k2"); v != "v3" {
		t.Fatalf("expected merge to add k2, got %q", v)
	}
}

func TestOrderedMapDelete(t *testing.T) {
	m := NewOrderedMap()
	m.Set("a", "1")
	m.Set("b", "2")
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected a to be deleted")
	}
	if got, want := m.Keys(), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

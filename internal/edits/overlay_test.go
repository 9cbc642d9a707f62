package edits

import (
	"reflect"
	"testing"
)

func TestOverlay_ZeroValueIsEmpty(t *testing.T) {
	var o Overlay
	if !o.Empty() {
		t.Error("expected zero overlay to be empty")
	}
	if o.Len() != 0 {
		t.Errorf("expected 0 edits, got %d", o.Len())
	}
	if _, ok := o.Lookup(1, 0); ok {
		t.Error("expected no edit in empty overlay")
	}
	if len(o.Pages()) != 0 {
		t.Errorf("expected no pages, got %v", o.Pages())
	}
}

func TestOverlay_SetDoesNotMutateReceiver(t *testing.T) {
	var base Overlay
	first := base.Set(1, 0, Edit{Text: "a"})
	second := first.Set(1, 2, Edit{Text: "b"})

	if !base.Empty() {
		t.Error("expected base overlay to stay empty")
	}
	if first.Len() != 1 {
		t.Errorf("expected first overlay to hold 1 edit, got %d", first.Len())
	}
	if _, ok := first.Lookup(1, 2); ok {
		t.Error("expected first overlay to be unaffected by later Set")
	}
	if second.Len() != 2 {
		t.Errorf("expected 2 edits, got %d", second.Len())
	}
	if second.Version() <= first.Version() {
		t.Errorf("expected version to advance, got %d then %d", first.Version(), second.Version())
	}
}

func TestOverlay_SetReplacesExisting(t *testing.T) {
	o := Overlay{}.Set(3, 1, Edit{Text: "old"}).Set(3, 1, Edit{Text: "new"})
	e, ok := o.Lookup(3, 1)
	if !ok || e.Text != "new" {
		t.Errorf("expected replacement %q, got %q (found=%v)", "new", e.Text, ok)
	}
	if o.Len() != 1 {
		t.Errorf("expected 1 edit, got %d", o.Len())
	}
}

func TestOverlay_OnlyEditedPagesAreKeys(t *testing.T) {
	o := Overlay{}.Set(5, 0, Edit{Text: "x"}).Set(2, 4, Edit{Text: "y"}).Set(2, 1, Edit{Text: "z"})

	if got, want := o.Pages(), []int{2, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected pages %v, got %v", want, got)
	}
	if got, want := o.Indices(2), []int{1, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected indices %v, got %v", want, got)
	}
	if got := o.Indices(9); len(got) != 0 {
		t.Errorf("expected no indices for unedited page, got %v", got)
	}
}

func TestOverlay_SnapshotIsDetached(t *testing.T) {
	o := Overlay{}.Set(1, 0, Edit{Text: "keep"})
	snap := o.Snapshot()
	snap[1][0] = Edit{Text: "changed"}

	e, _ := o.Lookup(1, 0)
	if e.Text != "keep" {
		t.Errorf("expected overlay unaffected by snapshot edits, got %q", e.Text)
	}
}

func TestResolve(t *testing.T) {
	o := Overlay{}.Set(1, 0, Edit{Text: "X"})

	tests := []struct {
		name     string
		page     int
		index    int
		original string
		want     string
	}{
		{"edited", 1, 0, "orig", "X"},
		{"other index", 1, 1, "orig", "orig"},
		{"other page", 2, 0, "orig", "orig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(o, tt.page, tt.index, tt.original); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

package enrollment

import (
	"context"
	"errors"
	"testing"
)

func TestRollNumber_Format(t *testing.T) {
	store := newMockStore()
	cls := store.addClass("BCU-MCA-1-1")
	for i := 0; i < 6; i++ {
		store.seedStudent(cls.ID, "x", roll(i), user(i))
	}

	alloc := NewAllocator(store)
	got, err := alloc.RollNumber(context.Background(), cls.Code, cls.ID)
	if err != nil {
		t.Fatalf("RollNumber: %v", err)
	}
	if got != "BCU-MCA-1-1-0007" {
		t.Errorf("want BCU-MCA-1-1-0007, got %s", got)
	}
}

func TestRollNumber_CountError(t *testing.T) {
	store := newMockStore()
	cls := store.addClass("BCU-MCA-1-1")
	store.countErr = errors.New("store down")

	alloc := NewAllocator(store)
	if _, err := alloc.RollNumber(context.Background(), cls.Code, cls.ID); err == nil {
		t.Error("expected error when count probe fails")
	}
}

func TestUsername_Base(t *testing.T) {
	alloc := NewAllocator(newMockStore())
	got, err := alloc.Username(context.Background(), "John  Doe")
	if err != nil {
		t.Fatalf("Username: %v", err)
	}
	if got != "johndoe" {
		t.Errorf("want johndoe, got %s", got)
	}
}

func TestUsername_StoreCollision(t *testing.T) {
	store := newMockStore()
	cls := store.addClass("BCU-MCA-1-1")
	store.seedStudent(cls.ID, "John Doe", "BCU-MCA-1-1-0001", "johndoe")

	alloc := NewAllocator(store)
	got, err := alloc.Username(context.Background(), "John Doe")
	if err != nil {
		t.Fatalf("Username: %v", err)
	}
	if got != "johndoe1" {
		t.Errorf("want johndoe1, got %s", got)
	}
}

func TestUsername_BatchCollision(t *testing.T) {
	alloc := NewAllocator(newMockStore())

	first, _ := alloc.Username(context.Background(), "John Doe")
	alloc.Commit(first)
	second, err := alloc.Username(context.Background(), "John Doe")
	if err != nil {
		t.Fatalf("Username: %v", err)
	}
	if first != "johndoe" || second != "johndoe1" {
		t.Errorf("want johndoe, johndoe1; got %s, %s", first, second)
	}
}

func TestUsername_ProbeError(t *testing.T) {
	store := newMockStore()
	store.probeErr = errors.New("store down")
	alloc := NewAllocator(store)
	if _, err := alloc.Username(context.Background(), "John Doe"); err == nil {
		t.Error("expected error when uniqueness probe fails")
	}
}

func roll(i int) string { return "BCU-MCA-1-1-000" + string(rune('1'+i)) }
func user(i int) string { return "seed" + string(rune('a'+i)) }

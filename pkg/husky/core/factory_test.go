package core

import (
	"errors"
	"testing"

	"github.com/husky-team/husky/pkg/husky/types"
)

func TestCreateAccessorSetAllocatesOnce(t *testing.T) {
	f := NewAccessorFactory()

	first, err := CreateAccessorSet[int](f, types.ChannelId(1), 3)
	if err != nil {
		t.Fatalf("CreateAccessorSet: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 accessors, got %d", len(first))
	}

	second, err := CreateAccessorSet[int](f, types.ChannelId(1), 3)
	if err != nil {
		t.Fatalf("CreateAccessorSet (repeat): %v", err)
	}
	if &first[0] != &second[0] && first[0] != second[0] {
		t.Fatalf("expected the same accessor set to be returned")
	}
}

func TestCreateAccessorSetRejectsTypeMismatch(t *testing.T) {
	f := NewAccessorFactory()
	if _, err := CreateAccessorSet[int](f, types.ChannelId(1), 2); err != nil {
		t.Fatalf("CreateAccessorSet: %v", err)
	}
	if _, err := CreateAccessorSet[string](f, types.ChannelId(1), 2); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected InvalidState on type mismatch, got %v", err)
	}
}

func TestRemoveAccessorSetFreesAfterAllReferencesReleased(t *testing.T) {
	f := NewAccessorFactory()
	if _, err := CreateAccessorSet[int](f, types.ChannelId(1), 2); err != nil {
		t.Fatalf("CreateAccessorSet: %v", err)
	}

	f.RemoveAccessorSet(types.ChannelId(1))
	if _, ok := f.sets[types.ChannelId(1)]; !ok {
		t.Fatalf("expected channel to survive one release out of two")
	}

	f.RemoveAccessorSet(types.ChannelId(1))
	if _, ok := f.sets[types.ChannelId(1)]; ok {
		t.Fatalf("expected channel to be freed after both releases")
	}
}

func TestCreateShuffleCombinerSetAllocatesOnce(t *testing.T) {
	f := NewShuffleCombinerFactory()

	first, err := CreateShuffleCombinerSet[int](f, types.ChannelId(2), 2, 4)
	if err != nil {
		t.Fatalf("CreateShuffleCombinerSet: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 combiners, got %d", len(first))
	}

	second, err := CreateShuffleCombinerSet[int](f, types.ChannelId(2), 2, 4)
	if err != nil {
		t.Fatalf("CreateShuffleCombinerSet (repeat): %v", err)
	}
	if first[0] != second[0] {
		t.Fatalf("expected the same combiner set to be returned")
	}
}

func TestCreateShuffleCombinerSetRejectsTypeMismatch(t *testing.T) {
	f := NewShuffleCombinerFactory()
	if _, err := CreateShuffleCombinerSet[int](f, types.ChannelId(1), 1, 1); err != nil {
		t.Fatalf("CreateShuffleCombinerSet: %v", err)
	}
	if _, err := CreateShuffleCombinerSet[string](f, types.ChannelId(1), 1, 1); !errors.Is(err, types.ErrInvalidState) {
		t.Fatalf("expected InvalidState on type mismatch, got %v", err)
	}
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/stochos/internal/ir"
)

func TestSaveScene_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.SaveScene(ctx, createTestScene("one"))
	if err != nil {
		t.Fatalf("SaveScene failed: %v", err)
	}
	id2, err := s.SaveScene(ctx, createTestScene("one"))
	if err != nil {
		t.Fatalf("second SaveScene failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same scene saved under %q and %q", id1, id2)
	}

	id3, err := s.SaveScene(ctx, createTestScene("two"))
	if err != nil {
		t.Fatalf("SaveScene failed: %v", err)
	}
	if id3 == id1 {
		t.Error("different scenes share an id")
	}

	scenes, err := s.ListScenes(ctx)
	if err != nil {
		t.Fatalf("ListScenes failed: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("len(scenes) = %d, want 2", len(scenes))
	}
	if scenes[0].Name != "one" || scenes[1].Name != "two" {
		t.Errorf("scenes = %+v, want ordered by name", scenes)
	}
	if scenes[0].Seed != 7 {
		t.Errorf("Seed = %d, want 7", scenes[0].Seed)
	}
}

func TestSaveScene_Nil(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.SaveScene(context.Background(), nil); err == nil {
		t.Error("SaveScene(nil) succeeded")
	}
}

func TestWriteRender_RequiresScene(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRender(context.Background(), Render{ID: "r-1", SceneID: "missing"}, nil)
	if err == nil {
		t.Fatal("WriteRender with unknown scene succeeded")
	}
}

func TestWriteRender_DuplicateIDRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sceneID, err := s.SaveScene(ctx, createTestScene("dup"))
	if err != nil {
		t.Fatal(err)
	}
	events := []ir.Event{{Seq: 1, Timestamp: 0.1, Generator: "A", Kind: ir.KindNote, Value: 60}}
	if err := s.WriteRender(ctx, Render{ID: "r-1", SceneID: sceneID}, events); err != nil {
		t.Fatalf("WriteRender failed: %v", err)
	}

	more := []ir.Event{
		{Seq: 1, Timestamp: 0.1, Generator: "A", Kind: ir.KindNote, Value: 60},
		{Seq: 2, Timestamp: 0.2, Generator: "A", Kind: ir.KindNote, Value: 61},
	}
	if err := s.WriteRender(ctx, Render{ID: "r-1", SceneID: sceneID}, more); err == nil {
		t.Fatal("second WriteRender with the same id succeeded")
	}

	got, err := s.ReadEvents(ctx, "r-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len(events) = %d, want 1 (failed write must roll back)", len(got))
	}
}

func TestWriteRender_DuplicateSeqRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sceneID, err := s.SaveScene(ctx, createTestScene("seq"))
	if err != nil {
		t.Fatal(err)
	}
	events := []ir.Event{
		{Seq: 1, Generator: "A", Kind: ir.KindNote},
		{Seq: 1, Generator: "B", Kind: ir.KindNote},
	}
	if err := s.WriteRender(ctx, Render{ID: "r-2", SceneID: sceneID}, events); err == nil {
		t.Fatal("WriteRender with duplicate seq succeeded")
	}
	if _, err := s.GetRender(ctx, "r-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRender after rollback = %v, want ErrNotFound", err)
	}
}

func TestWriteRender_EmptyID(t *testing.T) {
	s := createTestStore(t)
	if err := s.WriteRender(context.Background(), Render{}, nil); err == nil {
		t.Error("WriteRender with empty id succeeded")
	}
}

func TestDeleteRender_CascadesEvents(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sceneID, err := s.SaveScene(ctx, createTestScene("del"))
	if err != nil {
		t.Fatal(err)
	}
	events := []ir.Event{{Seq: 1, Generator: "A", Kind: ir.KindNote}}
	if err := s.WriteRender(ctx, Render{ID: "r-3", SceneID: sceneID}, events); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteRender(ctx, "r-3"); err != nil {
		t.Fatalf("DeleteRender failed: %v", err)
	}
	got, err := s.ReadEvents(ctx, "r-3")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("events survived delete: %d", len(got))
	}
	if err := s.DeleteRender(ctx, "r-3"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRender = %v, want ErrNotFound", err)
	}
}

package storage

import (
	"testing"

	"github.com/jcrabapple/Nanopaca/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInstanceRoundTrip(t *testing.T) {
	store := openTestStore(t)

	props := map[string]any{
		"name":       "NanoGPT",
		"api":        "secret",
		"max_tokens": float64(4096),
	}
	if err := store.InsertOrUpdateInstance("inst-1", true, "nanogpt", props); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.InsertOrUpdateInstance("inst-2", false, "ollama", map[string]any{"name": "Local"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	records, err := store.GetInstances()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// pinned instance sorts first
	if records[0].ID != "inst-1" || !records[0].Pinned {
		t.Errorf("expected pinned inst-1 first, got %+v", records[0])
	}
	if records[0].Type != "nanogpt" {
		t.Errorf("Type = %q", records[0].Type)
	}
	if records[0].Properties["name"] != "NanoGPT" {
		t.Errorf("Properties = %v", records[0].Properties)
	}
}

func TestUpdateInstancePropertiesKeepsPinned(t *testing.T) {
	store := openTestStore(t)

	if err := store.InsertOrUpdateInstance("inst-1", true, "nanogpt", map[string]any{"default_model": ""}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.UpdateInstanceProperties("inst-1", map[string]any{"default_model": "gpt-4o-mini"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	records, err := store.GetInstances()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !records[0].Pinned {
		t.Error("pinned flag lost on property update")
	}
	if records[0].Properties["default_model"] != "gpt-4o-mini" {
		t.Errorf("Properties = %v", records[0].Properties)
	}
}

func TestModelList(t *testing.T) {
	store := openTestStore(t)

	for _, m := range []string{"gpt-4o-mini", "claude-sonnet-4", "gpt-4o-mini"} {
		if err := store.AppendOnlineInstanceModelList("inst-1", m); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	models, err := store.GetOnlineInstanceModelList("inst-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected duplicate append to be ignored, got %v", models)
	}

	if err := store.RemoveOnlineInstanceModelList("inst-1", "claude-sonnet-4"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	models, _ = store.GetOnlineInstanceModelList("inst-1")
	if len(models) != 1 || models[0] != "gpt-4o-mini" {
		t.Errorf("models after remove = %v", models)
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	store := openTestStore(t)

	att := chat.NewAttachment("web_search", chat.AttachmentTool, "## Result\nfound it")
	if err := store.InsertOrUpdateAttachment("msg-1", att); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// updating under the same id replaces content
	att.Content = "## Result\nrevised"
	if err := store.InsertOrUpdateAttachment("msg-1", att); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	atts, err := store.GetAttachments("msg-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].Content != "## Result\nrevised" {
		t.Errorf("Content = %q", atts[0].Content)
	}

	if atts, _ := store.GetAttachments("other"); len(atts) != 0 {
		t.Errorf("expected no attachments for other message, got %d", len(atts))
	}
}

func TestDeleteInstance(t *testing.T) {
	store := openTestStore(t)

	if err := store.InsertOrUpdateInstance("inst-1", false, "nanogpt", map[string]any{}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.AppendOnlineInstanceModelList("inst-1", "gpt-4o-mini"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := store.DeleteInstance("inst-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	records, _ := store.GetInstances()
	if len(records) != 0 {
		t.Errorf("expected no instances, got %d", len(records))
	}
	models, _ := store.GetOnlineInstanceModelList("inst-1")
	if len(models) != 0 {
		t.Errorf("expected model list cleared, got %v", models)
	}
}

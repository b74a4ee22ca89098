package app_test

import (
	"context"
	"errors"
	"testing"

	"neetiq-service/internal/app"
	"neetiq-service/internal/domain"
	"neetiq-service/internal/infra/memory"
)

const ownerID int64 = 1000

func newQuestionFixture() (*app.QuestionService, *app.AdminService, *memory.QuestionStore) {
	admins := app.NewAdminService(memory.NewAdminStore(), ownerID)
	store := memory.NewQuestionStore()
	return app.NewQuestionService(store, admins), admins, store
}

const validBlock = `Which enzyme unwinds DNA during replication?
Ligase
Helicase
Primase
Topoisomerase
2
Helicase separates the two strands at the replication fork.`

func TestParseQuestionBlocks(t *testing.T) {
	questions, skipped := app.ParseQuestionBlocks(validBlock)
	if skipped != 0 || len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d (skipped %d)", len(questions), skipped)
	}
	q := questions[0]
	if q.Text != "Which enzyme unwinds DNA during replication?" {
		t.Fatalf("unexpected text: %q", q.Text)
	}
	if q.OptionB != "Helicase" || q.Correct != "2" {
		t.Fatalf("unexpected parse: %+v", q)
	}
	if q.Explanation == "" {
		t.Fatal("explanation lost")
	}
}

func TestParseQuestionBlocksMultilineText(t *testing.T) {
	block := "A 30-year-old presents with fatigue.\nHemoglobin is 8 g/dL.\nWhat is the first investigation?\nPeripheral smear\nBone marrow biopsy\nSerum ferritin\nCoombs test\nA\nSmear morphology directs the anemia workup."
	questions, skipped := app.ParseQuestionBlocks(block)
	if skipped != 0 || len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d (skipped %d)", len(questions), skipped)
	}
	if questions[0].Text != "A 30-year-old presents with fatigue.\nHemoglobin is 8 g/dL.\nWhat is the first investigation?" {
		t.Fatalf("multi-line text mangled: %q", questions[0].Text)
	}
	if questions[0].OptionA != "Peripheral smear" || questions[0].Correct != "A" {
		t.Fatalf("unexpected parse: %+v", questions[0])
	}
}

func TestParseQuestionBlocksSkipsMalformed(t *testing.T) {
	raw := validBlock + "\n\nToo\nshort\nblock\n\n" + "Question?\nopt a\nopt b\nopt c\nopt d\n9\nbad marker"
	questions, skipped := app.ParseQuestionBlocks(raw)
	if len(questions) != 1 {
		t.Fatalf("expected only the valid block, got %d", len(questions))
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped blocks, got %d", skipped)
	}
}

func TestImportRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newQuestionFixture()

	if _, err := svc.Import(ctx, 42, validBlock); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestImportAndCount(t *testing.T) {
	ctx := context.Background()
	svc, admins, _ := newQuestionFixture()

	summary, err := svc.Import(ctx, ownerID, validBlock+"\n\n"+validBlock)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if summary.Added != 2 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// A promoted admin may import and count too.
	if err := admins.AddAdmin(ctx, ownerID, 42); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	count, err := svc.Count(ctx, 42)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestDeleteAllIsOwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc, admins, _ := newQuestionFixture()

	if _, err := svc.Import(ctx, ownerID, validBlock); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := admins.AddAdmin(ctx, ownerID, 42); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := svc.DeleteAll(ctx, 42); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("admin must not wipe the bank, got %v", err)
	}
	if err := svc.DeleteAll(ctx, ownerID); err != nil {
		t.Fatalf("owner wipe: %v", err)
	}
	count, err := svc.Count(ctx, ownerID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d after wipe, want 0", count)
	}
}

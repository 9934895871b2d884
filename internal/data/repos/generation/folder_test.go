package generation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pagopa/payment-notice-generator/internal/data/repos/testutil"
	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
)

func newFolder(t *testing.T, repo FolderRepo, total int) *domain.Folder {
	t.Helper()
	folder := &domain.Folder{
		ID:                    fmt.Sprintf("folder-%d", time.Now().UnixNano()),
		Status:                domain.FolderStatusInserted,
		NumberOfElementsTotal: total,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
	if err := repo.Create(dbctx.Background(), folder); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return folder
}

func TestFolderRepoRegisterItem(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	folder := newFolder(t, repo, 2)

	matched, err := repo.RegisterItem(dbc, folder.ID, "item-1")
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if matched != 1 {
		t.Fatalf("RegisterItem matched = %d, want 1", matched)
	}

	got, err := repo.GetByID(dbc, folder.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.FolderStatusProcessing {
		t.Fatalf("status = %s, want %s", got.Status, domain.FolderStatusProcessing)
	}
	if len(got.Items) != 1 || got.Items[0].ItemID != "item-1" {
		t.Fatalf("items = %+v, want single item-1", got.Items)
	}

	// Registering the same item again must not grow the set.
	if _, err := repo.RegisterItem(dbc, folder.ID, "item-1"); err != nil {
		t.Fatalf("RegisterItem (repeat): %v", err)
	}
	count, err := repo.CountItems(dbc, folder.ID)
	if err != nil {
		t.Fatalf("CountItems: %v", err)
	}
	if count != 1 {
		t.Fatalf("CountItems = %d, want 1", count)
	}
}

func TestFolderRepoRegisterItemUnknownFolder(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	matched, err := repo.RegisterItem(dbc, "does-not-exist", "item-1")
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if matched != 0 {
		t.Fatalf("RegisterItem matched = %d, want 0", matched)
	}
}

func TestFolderRepoFailedCounter(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	folder := newFolder(t, repo, 3)

	if _, err := repo.IncrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("IncrementFailed: %v", err)
	}
	if _, err := repo.IncrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("IncrementFailed: %v", err)
	}
	got, err := repo.GetByID(dbc, folder.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.NumberOfElementsFailed != 2 {
		t.Fatalf("failed counter = %d, want 2", got.NumberOfElementsFailed)
	}

	if err := repo.DecrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("DecrementFailed: %v", err)
	}
	if err := repo.DecrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("DecrementFailed: %v", err)
	}
	// Counter is at zero now; further decrements must be no-ops, never negative.
	if err := repo.DecrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("DecrementFailed (at zero): %v", err)
	}
	got, err = repo.GetByID(dbc, folder.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.NumberOfElementsFailed != 0 {
		t.Fatalf("failed counter = %d, want 0", got.NumberOfElementsFailed)
	}
}

func TestFolderRepoTryComplete(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	folder := newFolder(t, repo, 3)

	if _, err := repo.RegisterItem(dbc, folder.ID, "item-1"); err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if _, err := repo.RegisterItem(dbc, folder.ID, "item-2"); err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}

	// Two of three elements accounted for: not complete yet.
	done, err := repo.TryComplete(dbc, folder.ID)
	if err != nil {
		t.Fatalf("TryComplete: %v", err)
	}
	if done {
		t.Fatalf("TryComplete = true with elements still outstanding")
	}

	// A failure covers the third element.
	if _, err := repo.IncrementFailed(dbc, folder.ID); err != nil {
		t.Fatalf("IncrementFailed: %v", err)
	}
	done, err = repo.TryComplete(dbc, folder.ID)
	if err != nil {
		t.Fatalf("TryComplete: %v", err)
	}
	if !done {
		t.Fatalf("TryComplete = false with all elements accounted for")
	}

	got, err := repo.GetByID(dbc, folder.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.FolderStatusCompleting {
		t.Fatalf("status = %s, want %s", got.Status, domain.FolderStatusCompleting)
	}
}

func TestFolderRepoTryCompleteIsExclusive(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	folder := newFolder(t, repo, 1)
	if _, err := repo.RegisterItem(dbc, folder.ID, "item-1"); err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}

	winners := 0
	for i := 0; i < 5; i++ {
		done, err := repo.TryComplete(dbc, folder.ID)
		if err != nil {
			t.Fatalf("TryComplete: %v", err)
		}
		if done {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("TryComplete succeeded %d times, want exactly 1", winners)
	}
}

func TestFolderRepoRegisterItemDoesNotDowngradeCompleting(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	folder := newFolder(t, repo, 1)
	if _, err := repo.RegisterItem(dbc, folder.ID, "item-1"); err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if done, err := repo.TryComplete(dbc, folder.ID); err != nil || !done {
		t.Fatalf("TryComplete: done=%v err=%v", done, err)
	}

	// A straggler registering after completion must not pull the folder back.
	matched, err := repo.RegisterItem(dbc, folder.ID, "item-2")
	if err != nil {
		t.Fatalf("RegisterItem: %v", err)
	}
	if matched != 0 {
		t.Fatalf("RegisterItem matched = %d, want 0 on COMPLETING folder", matched)
	}
	got, err := repo.GetByID(dbc, folder.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.FolderStatusCompleting {
		t.Fatalf("status = %s, want %s", got.Status, domain.FolderStatusCompleting)
	}
}

func TestFolderRepoGetByIDMissing(t *testing.T) {
	db := testutil.DB(t)
	repo := NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	got, err := repo.GetByID(dbc, "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByID = %+v, want nil", got)
	}
}

package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

func TestCreateCredential_DuplicateID(t *testing.T) {
	db := newTestDB(t)
	seedCredential(t, db, "c1")
	err := CreateCredential(context.Background(), db, &domain.Credential{ID: "c1", Value: "unb=2"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetCredential_EnabledMaterialized(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedCredential(t, db, "c1")

	got, err := GetCredential(ctx, db, "c1")
	if err != nil || !got.Enabled {
		t.Fatalf("GetCredential: %+v err=%v", got, err)
	}
	if err := SetCredentialEnabled(ctx, db, "c1", false); err != nil {
		t.Fatalf("SetCredentialEnabled: %v", err)
	}
	got, _ = GetCredential(ctx, db, "c1")
	if got.Enabled {
		t.Fatalf("expected disabled credential")
	}

	if _, err := GetCredential(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCredentials_MissingStatusMeansEnabled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedCredential(t, db, "b")
	if err := db.Create(&domain.Credential{ID: "a", Value: "unb=a"}).Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if err := SetCredentialEnabled(ctx, db, "b", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	list, err := ListCredentials(ctx, db)
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if !list[0].Enabled || list[1].Enabled {
		t.Fatalf("enabled flags wrong: %+v", list)
	}
}

func TestUpdateCredentialValueAndSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedCredential(t, db, "c1")

	if err := UpdateCredentialValue(ctx, db, "c1", "unb=c1; x=y"); err != nil {
		t.Fatalf("UpdateCredentialValue: %v", err)
	}
	if err := UpdateCredentialSettings(ctx, db, "c1", 0, true, "main shop"); err != nil {
		t.Fatalf("UpdateCredentialSettings: %v", err)
	}
	got, _ := GetCredential(ctx, db, "c1")
	if got.Value != "unb=c1; x=y" || got.PauseMinutes != 0 || !got.AutoConfirm || got.Remark != "main shop" {
		t.Fatalf("unexpected credential: %+v", got)
	}

	if err := UpdateCredentialValue(ctx, db, "missing", "v"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCredential(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedCredential(t, db, "c1")
	if err := CreateKeyword(ctx, db, &domain.Keyword{CredentialID: "c1", Keyword: "k"}); err != nil {
		t.Fatalf("CreateKeyword: %v", err)
	}
	if err := DeleteCredential(ctx, db, "c1"); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	kws, _ := ListKeywords(ctx, db, "c1")
	if len(kws) != 0 {
		t.Fatalf("keywords not cascaded: %+v", kws)
	}
	if err := DeleteCredential(ctx, db, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

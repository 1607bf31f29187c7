package vault_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"civico/backend/internal/config"
	"civico/backend/internal/models"
	"civico/backend/internal/storage"
	"civico/backend/internal/vault"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedDraft(t *testing.T, db *gorm.DB, owner string) *models.Draft {
	t.Helper()
	d := &models.Draft{OwnerID: owner, Fields: models.FieldMap{}}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return d
}

func TestInferKind(t *testing.T) {
	cases := []struct {
		declared, contentType, want string
	}{
		{"foto", "", models.KindImage},
		{"firma", "image/png", models.KindSignature},
		{"cedula", "image/jpeg", models.KindIDDoc},
		{"video", "", models.KindVideo},
		{"", "video/mp4", models.KindVideo},
		{"", "audio/ogg", models.KindAudio},
		{"", "application/pdf", models.KindIDDoc},
		{"", "image/jpeg", models.KindImage},
		{"???", "", models.KindImage},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, vault.InferKind(tc.declared, tc.contentType), "%q/%q", tc.declared, tc.contentType)
	}
}

// TestStore_EvidenceDescriptorOnDraft: the upload lands in the blob table
// and its descriptor is appended to the draft's evidences list.
func TestStore_EvidenceDescriptorOnDraft(t *testing.T) {
	db := testDB(t)
	v := vault.NewVault(db)
	ctx := context.Background()
	d := seedDraft(t, db, "owner-1")

	att, err := v.Store(ctx, d.ID, "owner-1", "foto", "bache.jpg", "image/jpeg", []byte("jpeg"))
	assert.NoError(t, err)
	assert.Equal(t, models.KindImage, att.Kind)
	assert.Equal(t, d.ID, *att.DraftID)

	var fresh models.Draft
	assert.NoError(t, db.First(&fresh, "id = ?", d.ID).Error)
	evs, ok := fresh.Fields[models.FieldEvidences].([]any)
	assert.True(t, ok)
	assert.Len(t, evs, 1)
	desc, _ := evs[0].(map[string]any)
	assert.Equal(t, att.ID, desc["attachment_id"])
}

func TestStore_SignatureSetsFieldNotList(t *testing.T) {
	db := testDB(t)
	v := vault.NewVault(db)
	ctx := context.Background()
	d := seedDraft(t, db, "owner-1")

	att, err := v.Store(ctx, d.ID, "owner-1", "firma", "firma.png", "image/png", []byte("png"))
	assert.NoError(t, err)

	var fresh models.Draft
	assert.NoError(t, db.First(&fresh, "id = ?", d.ID).Error)
	assert.Equal(t, att.ID, fresh.Fields.String(models.FieldSignatureID))
	assert.NotContains(t, fresh.Fields, models.FieldEvidences)
}

// TestStore_ImageOverLimitRejected: a 6MB photo is over the 5MB image cap.
func TestStore_ImageOverLimitRejected(t *testing.T) {
	db := testDB(t)
	v := vault.NewVault(db)
	d := seedDraft(t, db, "owner-1")

	big := bytes.Repeat([]byte("x"), int(config.MaxImageBytes)+1)
	_, err := v.Store(context.Background(), d.ID, "owner-1", "foto", "grande.jpg", "image/jpeg", big)
	assert.ErrorIs(t, err, vault.ErrTooLarge)

	var count int64
	db.Model(&models.Attachment{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestStore_DraftOwnershipEnforced(t *testing.T) {
	db := testDB(t)
	v := vault.NewVault(db)
	d := seedDraft(t, db, "owner-1")

	_, err := v.Store(context.Background(), d.ID, "owner-2", "foto", "a.jpg", "image/jpeg", []byte("x"))
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

// TestFetchForOwner walks the ownership chain through the draft or the
// complaint the blob currently belongs to.
func TestFetchForOwner(t *testing.T) {
	db := testDB(t)
	v := vault.NewVault(db)
	ctx := context.Background()
	d := seedDraft(t, db, "owner-1")

	att, _ := v.Store(ctx, d.ID, "owner-1", "foto", "a.jpg", "image/jpeg", []byte("payload"))

	got, err := v.FetchForOwner(ctx, att.ID, "owner-1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("payload"), got.Data)

	_, err = v.FetchForOwner(ctx, att.ID, "owner-2")
	assert.ErrorIs(t, err, vault.ErrForbidden)

	_, err = v.FetchForOwner(ctx, "missing-id", "owner-1")
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

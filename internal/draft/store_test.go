package draft_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"civico/backend/internal/config"
	"civico/backend/internal/draft"
	"civico/backend/internal/models"
	"civico/backend/internal/storage"
)

// testDB creates an in-memory SQLite database with all required tables.
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

// fakeGeocoder is a scripted reverse geocoder.
type fakeGeocoder struct {
	addr  string
	calls int
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool) {
	f.calls++
	if f.addr == "" {
		return "", false
	}
	return f.addr, true
}

func testStore(t *testing.T, geocoder *fakeGeocoder) *draft.Store {
	t.Helper()
	db := testDB(t)
	fin := draft.NewFinalizer(db, nil)
	var st *draft.Store
	if geocoder != nil {
		st = draft.NewStore(db, geocoder, fin)
	} else {
		st = draft.NewStore(db, nil, fin)
	}
	return st
}

func completeFields() models.FieldMap {
	return models.FieldMap{
		models.FieldTypeID:      float64(1),
		models.FieldDescription: "basura acumulada en la esquina",
		models.FieldLatitude:    -0.93,
		models.FieldLongitude:   -78.61,
	}
}

// TestCreateIfAbsent_SingleDraftPerConversation verifies the second call
// returns the first draft rather than opening another.
func TestCreateIfAbsent_SingleDraftPerConversation(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	d1, err := st.CreateIfAbsent(ctx, "owner-1", "conv-1")
	assert.NoError(t, err)
	assert.Equal(t, models.OriginChat, d1.Fields.String(models.FieldOrigin))
	assert.False(t, d1.ReadyToSubmit)

	d2, err := st.CreateIfAbsent(ctx, "owner-1", "conv-1")
	assert.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)

	var count int64
	st.DB.Model(&models.Draft{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreate_FormDraft(t *testing.T) {
	geo := &fakeGeocoder{addr: "Av. Principal 123, Salcedo"}
	st := testStore(t, geo)
	ctx := context.Background()

	d, err := st.Create(ctx, "owner-1", completeFields())
	assert.NoError(t, err)
	assert.Equal(t, models.OriginForm, d.Fields.String(models.FieldOrigin))
	assert.True(t, d.ReadyToSubmit)
	assert.Equal(t, "Av. Principal 123, Salcedo", d.Fields.String(models.FieldResolvedAddress))
	assert.Equal(t, 1, geo.calls)
}

func TestCreate_RejectsUnknownKeys(t *testing.T) {
	st := testStore(t, nil)

	_, err := st.Create(context.Background(), "owner-1", models.FieldMap{"status": "approved"})
	assert.Error(t, err)
}

// TestGet_OwnerScoped: another citizen's draft reads as not found, never as
// a permission error.
func TestGet_OwnerScoped(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	d, _ := st.Create(ctx, "owner-1", nil)

	_, err := st.Get(ctx, d.ID, "owner-2")
	assert.ErrorIs(t, err, draft.ErrNotFound)

	got, err := st.Get(ctx, d.ID, "owner-1")
	assert.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
}

// TestApplyUpdates_MergeNeverDrops: merging adds and overwrites keys but
// never removes ones already present.
func TestApplyUpdates_MergeNeverDrops(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	d, _ := st.Create(ctx, "owner-1", models.FieldMap{models.FieldDescription: "primer intento"})

	got, err := st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{
		models.FieldTypeID:    float64(2),
		models.FieldReference: "frente al mercado",
	})
	assert.NoError(t, err)
	assert.Equal(t, "primer intento", got.Fields.String(models.FieldDescription))
	assert.Equal(t, "frente al mercado", got.Fields.String(models.FieldReference))
	assert.False(t, got.ReadyToSubmit)

	got, err = st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{
		models.FieldLatitude:  -0.93,
		models.FieldLongitude: -78.61,
	})
	assert.NoError(t, err)
	assert.True(t, got.ReadyToSubmit)
}

// TestApplyUpdates_RepeatedMergeIsIdempotent: re-applying the same extracted
// fields leaves the field map and readiness exactly as the first pass did.
func TestApplyUpdates_RepeatedMergeIsIdempotent(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	d, _ := st.Create(ctx, "owner-1", nil)
	extracted := models.FieldMap{
		models.FieldTypeID:      float64(1),
		models.FieldDescription: "hay basura acumulada hace 3 dias",
		models.FieldLatitude:    -0.93,
		models.FieldLongitude:   -78.61,
	}

	first, err := st.ApplyUpdates(ctx, d.ID, "owner-1", extracted)
	assert.NoError(t, err)
	assert.True(t, first.ReadyToSubmit)

	second, err := st.ApplyUpdates(ctx, d.ID, "owner-1", extracted)
	assert.NoError(t, err)
	assert.Equal(t, first.Fields, second.Fields)
	assert.True(t, second.ReadyToSubmit)
}

// TestApplyUpdates_DoesNotExtendTTL: edits bump updated_at but the expiry
// anchor stays at created_at.
func TestApplyUpdates_DoesNotExtendTTL(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }
	d, _ := st.Create(ctx, "owner-1", nil)

	st.Now = func() time.Time { return base.Add(3 * time.Minute) }
	got, err := st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{models.FieldDescription: "x"})
	assert.NoError(t, err)
	assert.WithinDuration(t, base.Add(config.DraftTTL), got.ExpiresAt(st.TTL), time.Second)
}

func TestApplyUpdates_ExpiredDraft(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }
	d, _ := st.Create(ctx, "owner-1", nil)

	st.Now = func() time.Time { return base.Add(st.TTL + time.Second) }
	_, err := st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{models.FieldDescription: "tarde"})
	assert.ErrorIs(t, err, draft.ErrExpired)
}

// TestApplyUpdates_GeocodeEnrichment: once both coordinates land, the
// resolved address appears without the caller sending it.
func TestApplyUpdates_GeocodeEnrichment(t *testing.T) {
	geo := &fakeGeocoder{addr: "Calle Sucre y Bolívar"}
	st := testStore(t, geo)
	ctx := context.Background()

	d, _ := st.Create(ctx, "owner-1", nil)
	assert.Equal(t, 0, geo.calls)

	got, err := st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{
		models.FieldLatitude:  -0.93,
		models.FieldLongitude: -78.61,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Calle Sucre y Bolívar", got.Fields.String(models.FieldResolvedAddress))

	// A second edit does not re-geocode: the resolved address is cached on
	// the draft itself.
	_, err = st.ApplyUpdates(ctx, d.ID, "owner-1", models.FieldMap{models.FieldDescription: "y"})
	assert.NoError(t, err)
	assert.Equal(t, 1, geo.calls)
}

func TestDiscard_RemovesDraftAndAttachments(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	d, _ := st.Create(ctx, "owner-1", nil)
	att := &models.Attachment{DraftID: &d.ID, Kind: models.KindImage, Filename: "foto.jpg", ContentType: "image/jpeg", SizeBytes: 3, Data: []byte("abc")}
	assert.NoError(t, st.DB.Create(att).Error)

	assert.NoError(t, st.Discard(ctx, d.ID, "owner-1"))

	_, err := st.Get(ctx, d.ID, "owner-1")
	assert.ErrorIs(t, err, draft.ErrNotFound)

	var count int64
	st.DB.Model(&models.Attachment{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDiscard_ExpiredDraft(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }
	d, _ := st.Create(ctx, "owner-1", nil)

	st.Now = func() time.Time { return base.Add(st.TTL + time.Minute) }
	assert.ErrorIs(t, st.Discard(ctx, d.ID, "owner-1"), draft.ErrExpired)
}

// TestListMine_SweepFinalizesExpiredComplete: listing is the expiry trigger.
// A complete expired draft becomes a complaint; an incomplete one is
// surfaced with its missing fields and kept.
func TestListMine_SweepFinalizesExpiredComplete(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }

	complete, _ := st.Create(ctx, "owner-1", completeFields())
	incomplete, _ := st.Create(ctx, "owner-1", models.FieldMap{models.FieldDescription: "sin ubicación"})

	st.Now = func() time.Time { return base.Add(st.TTL + time.Second) }
	result, err := st.ListMine(ctx, "owner-1")
	assert.NoError(t, err)

	assert.Equal(t, 1, result.AutoFinalized)
	assert.Empty(t, result.Drafts)
	assert.Len(t, result.ExpiredIncomplete, 1)
	assert.Equal(t, incomplete.ID, result.ExpiredIncomplete[0].DraftID)
	assert.Contains(t, result.ExpiredIncomplete[0].Missing, models.FieldTypeID)

	// The complete draft is gone and exactly one complaint exists for it.
	_, err = st.Get(ctx, complete.ID, "owner-1")
	assert.ErrorIs(t, err, draft.ErrNotFound)
	var complaints int64
	st.DB.Model(&models.Complaint{}).Count(&complaints)
	assert.Equal(t, int64(1), complaints)

	// The incomplete draft survives for the citizen to repair.
	_, err = st.Get(ctx, incomplete.ID, "owner-1")
	assert.NoError(t, err)
}

// TestListMine_SweepIsIdempotent: a second listing finalizes nothing new.
func TestListMine_SweepIsIdempotent(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }
	st.Create(ctx, "owner-1", completeFields())

	st.Now = func() time.Time { return base.Add(st.TTL + time.Second) }
	first, err := st.ListMine(ctx, "owner-1")
	assert.NoError(t, err)
	assert.Equal(t, 1, first.AutoFinalized)

	second, err := st.ListMine(ctx, "owner-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, second.AutoFinalized)

	var complaints int64
	st.DB.Model(&models.Complaint{}).Count(&complaints)
	assert.Equal(t, int64(1), complaints)
}

func TestListMine_LiveDraftsCarryCountdown(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	base := time.Now()
	st.Now = func() time.Time { return base }
	st.Create(ctx, "owner-1", nil)

	st.Now = func() time.Time { return base.Add(2 * time.Minute) }
	result, err := st.ListMine(ctx, "owner-1")
	assert.NoError(t, err)
	assert.Len(t, result.Drafts, 1)
	assert.InDelta(t, 180, result.Drafts[0].SecondsLeft, 1)
}

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"photo-library/internal/filter"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath, "photos")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func testPhoto(path string) *PhotoRecord {
	return &PhotoRecord{
		Path:        path,
		Filename:    filepath.Base(path),
		Dirname:     filepath.Dir(path),
		Extension:   filepath.Ext(path),
		Size:        1234,
		Tags:        []string{"beach"},
		Collections: []string{"general"},
	}
}

func TestInsertAndGetPhoto(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	record := testPhoto("/photos/2019/a.jpg")
	taken := time.Date(2019, 8, 21, 14, 30, 0, 0, time.UTC)
	record.TakenAt = &taken

	if err := db.InsertPhoto(ctx, record); err != nil {
		t.Fatalf("InsertPhoto returned error: %v", err)
	}
	if record.ID == "" {
		t.Fatal("InsertPhoto did not assign an id")
	}

	got, err := db.GetPhotoByPath(ctx, record.Path)
	if err != nil {
		t.Fatalf("GetPhotoByPath returned error: %v", err)
	}
	if got.ID != record.ID {
		t.Errorf("got id %s, want %s", got.ID, record.ID)
	}
	if got.TakenAt == nil || got.TakenAt.UnixMilli() != taken.UnixMilli() {
		t.Errorf("taken_at did not round-trip: %v", got.TakenAt)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "beach" {
		t.Errorf("tags did not round-trip: %v", got.Tags)
	}
}

func TestInsertPhotoDuplicatePath(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	err := db.InsertPhoto(ctx, testPhoto("/photos/a.jpg"))
	if !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("got %v, want ErrDuplicatePath", err)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)

	_, err := db.GetPhotoByID(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdatePhoto(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	record := testPhoto("/photos/a.jpg")
	if err := db.InsertPhoto(ctx, record); err != nil {
		t.Fatal(err)
	}

	record.Rating = 5
	record.Collections = []string{"trashed"}
	if err := db.UpdatePhoto(ctx, record); err != nil {
		t.Fatalf("UpdatePhoto returned error: %v", err)
	}

	got, err := db.GetPhotoByID(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Rating != 5 {
		t.Errorf("rating = %d, want 5", got.Rating)
	}
	if len(got.Collections) != 1 || got.Collections[0] != "trashed" {
		t.Errorf("collections = %v, want [trashed]", got.Collections)
	}
}

func TestPhotoAtOffsetAndCount(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	for _, name := range []string{"c.jpg", "a.jpg", "b.jpg"} {
		if err := db.InsertPhoto(ctx, testPhoto("/photos/"+name)); err != nil {
			t.Fatal(err)
		}
	}

	q := &filter.Query{}
	count, err := db.CountPhotos(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	got, err := db.PhotoAtOffset(ctx, q, "filename ASC, id ASC", 1)
	if err != nil {
		t.Fatalf("PhotoAtOffset returned error: %v", err)
	}
	if got.Filename != "b.jpg" {
		t.Errorf("offset 1 of filename-sorted set = %s, want b.jpg", got.Filename)
	}

	if _, err := db.PhotoAtOffset(ctx, q, "id ASC", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range offset: got %v, want ErrNotFound", err)
	}
}

func TestCountPhotosWithFilter(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	tagged := testPhoto("/photos/a.jpg")
	if err := db.InsertPhoto(ctx, tagged); err != nil {
		t.Fatal(err)
	}
	plain := testPhoto("/photos/b.jpg")
	plain.Tags = []string{}
	if err := db.InsertPhoto(ctx, plain); err != nil {
		t.Fatal(err)
	}

	expr, err := filter.Resolve([]byte(`{"tags": {"$elemMatch": {"$eq": "beach"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	q, err := filter.Compile(expr)
	if err != nil {
		t.Fatal(err)
	}
	count, err := db.CountPhotos(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestCountUnsortedPhotos(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	sorted := testPhoto("/photos/a.jpg")
	if err := db.InsertPhoto(ctx, sorted); err != nil {
		t.Fatal(err)
	}
	unsorted := testPhoto("/photos/b.jpg")
	unsorted.Collections = []string{}
	if err := db.InsertPhoto(ctx, unsorted); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountUnsortedPhotos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("unsorted count = %d, want 1", count)
	}
}

func TestMissingPhotoLifecycle(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	record := testPhoto("/photos/a.jpg")
	if err := db.InsertPhoto(ctx, record); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	record.MissingAt = &now
	if err := db.UpdatePhoto(ctx, record); err != nil {
		t.Fatal(err)
	}

	missing, err := db.ListMissingPhotos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0].ID != record.ID {
		t.Fatalf("ListMissingPhotos = %v", missing)
	}

	if _, err := db.RandomPhoto(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("RandomPhoto should skip missing photos, got %v", err)
	}

	if err := db.DeletePhoto(ctx, record.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetPhotoByID(ctx, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("photo still present after delete: %v", err)
	}
}

func TestMetaTypeAndMemberships(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	item, err := db.GetOrCreateMetaType(ctx, MetaKindTag, "beach")
	if err != nil {
		t.Fatalf("GetOrCreateMetaType returned error: %v", err)
	}
	again, err := db.GetOrCreateMetaType(ctx, MetaKindTag, "beach")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != item.ID {
		t.Errorf("second call created a new record: %s vs %s", again.ID, item.ID)
	}

	edge := &MetaItemMembership{PhotoID: "p1", MetaTypeID: item.ID, ItemName: "beach", ItemKind: MetaKindTag}
	if err := db.InsertMembership(ctx, edge); err != nil {
		t.Fatal(err)
	}
	// Duplicate insert is a no-op.
	if err := db.InsertMembership(ctx, &MetaItemMembership{
		PhotoID: "p1", MetaTypeID: item.ID, ItemName: "beach", ItemKind: MetaKindTag,
	}); err != nil {
		t.Fatalf("duplicate insert should not error: %v", err)
	}

	exists, err := db.MembershipExists(ctx, "p1", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("membership should exist")
	}

	edges, err := db.ListMemberships(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(edges))
	}

	if err := db.DeleteMembership(ctx, "p1", item.ID); err != nil {
		t.Fatal(err)
	}
	exists, err = db.MembershipExists(ctx, "p1", item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("membership should be gone")
	}
}

func TestCountsByKind(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	beach, _ := db.GetOrCreateMetaType(ctx, MetaKindTag, "beach")
	if _, err := db.GetOrCreateMetaType(ctx, MetaKindTag, "alps"); err != nil {
		t.Fatal(err)
	}
	for _, photoID := range []string{"p1", "p2"} {
		if err := db.InsertMembership(ctx, &MetaItemMembership{
			PhotoID: photoID, MetaTypeID: beach.ID, ItemName: "beach", ItemKind: MetaKindTag,
		}); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := db.CountsByKind(ctx, MetaKindTag)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d items, want 2", len(counts))
	}
	// Sorted by name: alps first with zero members.
	if counts[0].Item != "alps" || counts[0].Count != 0 {
		t.Errorf("counts[0] = %+v, want alps/0", counts[0])
	}
	if counts[1].Item != "beach" || counts[1].Count != 2 {
		t.Errorf("counts[1] = %+v, want beach/2", counts[1])
	}
}

func TestMetaCursorPersistence(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	cursor, err := db.GetOrCreateMetaType(ctx, MetaKindFilter, `["$and",[]]`)
	if err != nil {
		t.Fatal(err)
	}
	if cursor.CursorIndex != 0 {
		t.Errorf("new cursor index = %d, want 0", cursor.CursorIndex)
	}

	if err := db.UpdateMetaCursor(ctx, cursor.ID, 7); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetMetaType(ctx, MetaKindFilter, `["$and",[]]`)
	if err != nil {
		t.Fatal(err)
	}
	if got.CursorIndex != 7 {
		t.Errorf("cursor index = %d, want 7", got.CursorIndex)
	}
}

func TestPeopleRoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	person := &PersonRecord{
		FullName:  "Ada Lovelace",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Descriptors: []ReferenceDescriptor{
			{FaceDataID: "fd1", Index: 0, Descriptor: []float64{0.1, 0.2}},
		},
	}
	if err := db.InsertPerson(ctx, person); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetPersonByFullName(ctx, "Ada Lovelace")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Descriptors) != 1 || got.Descriptors[0].FaceDataID != "fd1" {
		t.Errorf("descriptors did not round-trip: %+v", got.Descriptors)
	}

	people, err := db.ListPeople(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(people) != 1 {
		t.Errorf("got %d people, want 1", len(people))
	}
}

func TestFaceDataRoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDatabase(t)
	ctx := context.Background()

	record := &FaceDataRecord{
		Path: "/photos/a.jpg",
		Detections: []FaceDetection{
			{Index: 0, Descriptor: []float64{1, 2, 3}},
			{Index: 1, Descriptor: []float64{4, 5, 6}},
		},
	}
	if err := db.InsertFaceData(ctx, record); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetFaceData(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(got.Detections))
	}

	got.Detections[1].PersonID = "someone"
	if err := db.UpdateFaceData(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetFaceData(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Detections[1].PersonID != "someone" {
		t.Errorf("person assignment did not persist")
	}

	if err := db.DeleteFaceData(ctx, record.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetFaceData(ctx, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("face data still present after delete: %v", err)
	}
}

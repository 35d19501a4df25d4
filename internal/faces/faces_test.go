package faces

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"photo-library/internal/database"
)

func newTestService(t *testing.T, detector Detector) (*Service, *database.Database) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(context.Background(), dbPath, "photos")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, detector, 0.5), db
}

type fakeDetector struct {
	descriptors [][]float64
	err         error
}

func (d *fakeDetector) DetectFaces(_ context.Context, _ string) ([][]float64, error) {
	return d.descriptors, d.err
}

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"unit apart", []float64{0, 0}, []float64{1, 0}, 1},
		{"pythagorean", []float64{0, 0}, []float64{3, 4}, 5},
		{"length mismatch", []float64{1}, []float64{1, 2}, math.Inf(1)},
	}
	for _, tc := range tests {
		if got := Distance(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Distance = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDetectAndStore(t *testing.T) {
	t.Parallel()
	service, db := newTestService(t, &fakeDetector{
		descriptors: [][]float64{{0.1, 0.2}, {0.3, 0.4}},
	})
	ctx := context.Background()

	id, err := service.DetectAndStore(ctx, "/photos/a.jpg")
	if err != nil {
		t.Fatalf("DetectAndStore returned error: %v", err)
	}

	record, err := db.GetFaceData(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(record.Detections))
	}
	if record.Detections[0].Index != 0 || record.Detections[1].Index != 1 {
		t.Errorf("detections not indexed in order: %+v", record.Detections)
	}
}

func TestDetectAndStoreWithoutDetector(t *testing.T) {
	t.Parallel()
	service, _ := newTestService(t, nil)

	if service.Enabled() {
		t.Error("service with nil detector reports enabled")
	}
	if _, err := service.DetectAndStore(context.Background(), "/photos/a.jpg"); err == nil {
		t.Fatal("expected error with no detector configured")
	}
}

func TestStoreReferenceAndRecognize(t *testing.T) {
	t.Parallel()
	service, db := newTestService(t, nil)
	ctx := context.Background()

	reference := &database.FaceDataRecord{
		Path:       "/photos/ada1.jpg",
		Detections: []database.FaceDetection{{Index: 0, Descriptor: []float64{0.1, 0.1}}},
	}
	if err := db.InsertFaceData(ctx, reference); err != nil {
		t.Fatal(err)
	}

	person, err := service.StoreReference(ctx, reference.ID, 0, "Ada Lovelace", "Ada", "Lovelace", true)
	if err != nil {
		t.Fatalf("StoreReference returned error: %v", err)
	}
	if len(person.Descriptors) != 1 {
		t.Fatalf("got %d reference descriptors, want 1", len(person.Descriptors))
	}

	confirmed, err := db.GetFaceData(ctx, reference.ID)
	if err != nil {
		t.Fatal(err)
	}
	detection := confirmed.Detections[0]
	if detection.PersonID != person.ID || !detection.IsReference || !detection.IsManual {
		t.Errorf("detection not marked as manual reference: %+v", detection)
	}

	// A second photo with one face close to the reference and one far away.
	candidate := &database.FaceDataRecord{
		Path: "/photos/ada2.jpg",
		Detections: []database.FaceDetection{
			{Index: 0, Descriptor: []float64{0.12, 0.1}},
			{Index: 1, Descriptor: []float64{5, 5}},
		},
	}
	if err := db.InsertFaceData(ctx, candidate); err != nil {
		t.Fatal(err)
	}

	assigned, err := service.Recognize(ctx, candidate.ID)
	if err != nil {
		t.Fatalf("Recognize returned error: %v", err)
	}
	if assigned != 1 {
		t.Fatalf("assigned %d faces, want 1", assigned)
	}

	got, err := db.GetFaceData(ctx, candidate.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Detections[0].PersonID != person.ID {
		t.Errorf("close face not assigned to person")
	}
	if got.Detections[1].PersonID != "" {
		t.Errorf("distant face should stay unassigned, got %q", got.Detections[1].PersonID)
	}
}

func TestStoreReferenceReplacesPerPhoto(t *testing.T) {
	t.Parallel()
	service, db := newTestService(t, nil)
	ctx := context.Background()

	record := &database.FaceDataRecord{
		Path: "/photos/a.jpg",
		Detections: []database.FaceDetection{
			{Index: 0, Descriptor: []float64{1, 1}},
			{Index: 1, Descriptor: []float64{2, 2}},
		},
	}
	if err := db.InsertFaceData(ctx, record); err != nil {
		t.Fatal(err)
	}

	if _, err := service.StoreReference(ctx, record.ID, 0, "Ada Lovelace", "Ada", "Lovelace", false); err != nil {
		t.Fatal(err)
	}
	person, err := service.StoreReference(ctx, record.ID, 1, "Ada Lovelace", "Ada", "Lovelace", false)
	if err != nil {
		t.Fatal(err)
	}

	if len(person.Descriptors) != 1 {
		t.Fatalf("one person keeps one reference per photo, got %d", len(person.Descriptors))
	}
	if person.Descriptors[0].Index != 1 {
		t.Errorf("reference should point at the newer detection, got index %d", person.Descriptors[0].Index)
	}
}

func TestRecognizeLeavesManualAssignments(t *testing.T) {
	t.Parallel()
	service, db := newTestService(t, nil)
	ctx := context.Background()

	person := &database.PersonRecord{
		FullName:    "Ada Lovelace",
		Descriptors: []database.ReferenceDescriptor{{FaceDataID: "x", Index: 0, Descriptor: []float64{0, 0}}},
	}
	if err := db.InsertPerson(ctx, person); err != nil {
		t.Fatal(err)
	}

	record := &database.FaceDataRecord{
		Path: "/photos/a.jpg",
		Detections: []database.FaceDetection{
			{Index: 0, Descriptor: []float64{0, 0}, PersonID: "someone-else", IsManual: true},
		},
	}
	if err := db.InsertFaceData(ctx, record); err != nil {
		t.Fatal(err)
	}

	assigned, err := service.Recognize(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if assigned != 0 {
		t.Errorf("manual assignment must not be overwritten, assigned = %d", assigned)
	}
}

func TestStoreReferenceUnknownDetection(t *testing.T) {
	t.Parallel()
	service, db := newTestService(t, nil)
	ctx := context.Background()

	record := &database.FaceDataRecord{Path: "/photos/a.jpg"}
	if err := db.InsertFaceData(ctx, record); err != nil {
		t.Fatal(err)
	}

	_, err := service.StoreReference(ctx, record.ID, 3, "Ada Lovelace", "", "", false)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

package faces

import (
	"context"
	"errors"
	"fmt"
	"math"

	"photo-library/internal/database"
	"photo-library/internal/logging"
)

// Detector produces one face descriptor per face found in an image. A nil
// detector disables face indexing entirely; everything else in this package
// still works against descriptors already stored.
type Detector interface {
	DetectFaces(ctx context.Context, path string) ([][]float64, error)
}

// Store is the slice of the record store the face service needs.
type Store interface {
	GetFaceData(ctx context.Context, id string) (*database.FaceDataRecord, error)
	InsertFaceData(ctx context.Context, record *database.FaceDataRecord) error
	UpdateFaceData(ctx context.Context, record *database.FaceDataRecord) error
	GetPersonByFullName(ctx context.Context, fullName string) (*database.PersonRecord, error)
	InsertPerson(ctx context.Context, record *database.PersonRecord) error
	UpdatePerson(ctx context.Context, record *database.PersonRecord) error
	ListPeople(ctx context.Context) ([]*database.PersonRecord, error)
}

// Service runs face detection and matching for the library.
type Service struct {
	store     Store
	detector  Detector
	threshold float64
}

// New returns a face service. detector may be nil.
func New(store Store, detector Detector, threshold float64) *Service {
	return &Service{store: store, detector: detector, threshold: threshold}
}

// Enabled reports whether a detector is configured.
func (s *Service) Enabled() bool {
	return s.detector != nil
}

// Distance is the Euclidean distance between two descriptors. Mismatched
// lengths are treated as infinitely far apart.
func Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DetectAndStore runs the detector on the photo's file and stores the result
// as a new face data record, returning its id. Photos with no faces still get
// a record, which marks them as scanned.
func (s *Service) DetectAndStore(ctx context.Context, path string) (string, error) {
	if s.detector == nil {
		return "", errors.New("no face detector configured")
	}

	descriptors, err := s.detector.DetectFaces(ctx, path)
	if err != nil {
		return "", fmt.Errorf("detecting faces in %s: %w", path, err)
	}

	record := &database.FaceDataRecord{Path: path, Detections: make([]database.FaceDetection, 0, len(descriptors))}
	for i, descriptor := range descriptors {
		record.Detections = append(record.Detections, database.FaceDetection{
			Index:      i,
			Descriptor: descriptor,
		})
	}

	if err := s.store.InsertFaceData(ctx, record); err != nil {
		return "", err
	}
	logging.Debug("stored %d face detections for %s", len(record.Detections), path)
	return record.ID, nil
}

// Recognize matches every unassigned detection in a face data record against
// the reference descriptors of all known people and assigns the nearest
// person within the match threshold. Manually assigned detections are never
// overwritten. Returns the number of detections newly assigned.
func (s *Service) Recognize(ctx context.Context, faceDataID string) (int, error) {
	record, err := s.store.GetFaceData(ctx, faceDataID)
	if err != nil {
		return 0, err
	}

	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return 0, err
	}

	assigned := 0
	for i := range record.Detections {
		detection := &record.Detections[i]
		if detection.IsManual || detection.PersonID != "" {
			continue
		}

		personID, distance := s.nearestPerson(detection.Descriptor, people)
		if personID == "" {
			continue
		}
		detection.PersonID = personID
		assigned++
		logging.Debug("matched face %d of %s to person %s (distance %.3f)",
			detection.Index, faceDataID, personID, distance)
	}

	if assigned == 0 {
		return 0, nil
	}
	if err := s.store.UpdateFaceData(ctx, record); err != nil {
		return 0, err
	}
	return assigned, nil
}

func (s *Service) nearestPerson(descriptor []float64, people []*database.PersonRecord) (string, float64) {
	best := ""
	bestDistance := s.threshold
	for _, person := range people {
		for _, ref := range person.Descriptors {
			if d := Distance(descriptor, ref.Descriptor); d <= bestDistance {
				best = person.ID
				bestDistance = d
			}
		}
	}
	return best, bestDistance
}

// StoreReference confirms that one detection belongs to the named person and
// promotes its descriptor to a reference. The person record is created on
// first use. A person keeps at most one reference per face data record, so a
// re-confirmation replaces the earlier descriptor from the same photo.
func (s *Service) StoreReference(ctx context.Context, faceDataID string, index int, fullName, firstName, lastName string, manual bool) (*database.PersonRecord, error) {
	record, err := s.store.GetFaceData(ctx, faceDataID)
	if err != nil {
		return nil, err
	}

	var detection *database.FaceDetection
	for i := range record.Detections {
		if record.Detections[i].Index == index {
			detection = &record.Detections[i]
			break
		}
	}
	if detection == nil {
		return nil, fmt.Errorf("%w: detection %d in face data %s", database.ErrNotFound, index, faceDataID)
	}

	person, err := s.store.GetPersonByFullName(ctx, fullName)
	if errors.Is(err, database.ErrNotFound) {
		person = &database.PersonRecord{FullName: fullName, FirstName: firstName, LastName: lastName}
		if err := s.store.InsertPerson(ctx, person); err != nil {
			return nil, err
		}
		logging.Info("created person record for %s", fullName)
	} else if err != nil {
		return nil, err
	}

	reference := database.ReferenceDescriptor{
		FaceDataID: faceDataID,
		Index:      index,
		Descriptor: append([]float64(nil), detection.Descriptor...),
		IsManual:   manual,
	}

	replaced := false
	for i := range person.Descriptors {
		if person.Descriptors[i].FaceDataID == faceDataID {
			person.Descriptors[i] = reference
			replaced = true
			break
		}
	}
	if !replaced {
		person.Descriptors = append(person.Descriptors, reference)
	}
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return nil, err
	}

	detection.PersonID = person.ID
	detection.IsReference = true
	detection.IsManual = manual
	if err := s.store.UpdateFaceData(ctx, record); err != nil {
		return nil, err
	}

	return person, nil
}

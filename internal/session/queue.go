package session

import (
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// Queue is the ordered collection of image records. Records are owned by the
// queue; callers only ever receive copies.
//
// Queue is not safe for concurrent use on its own. Session serializes access.
type Queue struct {
	images []model.ImageRecord
	paths  map[string]struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{paths: make(map[string]struct{})}
}

// Add appends every image whose SourcePath is not already queued, keeping the
// given order. Existing entries are never touched. It returns the records
// that were actually appended.
func (q *Queue) Add(images ...model.ImageRecord) []model.ImageRecord {
	added := make([]model.ImageRecord, 0, len(images))
	for _, img := range images {
		if _, ok := q.paths[img.SourcePath]; ok {
			continue
		}
		img = img.Clone()
		img.RotationDegrees = normalizeRotation(img.RotationDegrees)
		q.paths[img.SourcePath] = struct{}{}
		q.images = append(q.images, img)
		added = append(added, img.Clone())
	}
	return added
}

// Remove deletes the record with the given id. It reports whether a record
// was removed; removing an absent id is not an error.
func (q *Queue) Remove(id string) bool {
	i := q.Index(id)
	if i < 0 {
		return false
	}
	delete(q.paths, q.images[i].SourcePath)
	q.images = append(q.images[:i:i], q.images[i+1:]...)
	return true
}

// Reorder moves the element at from to position to, shifting the elements in
// between. Both indices must address existing elements.
func (q *Queue) Reorder(from, to int) error {
	n := len(q.images)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: reorder %d -> %d outside queue of %d", ErrInvalidArgument, from, to, n)
	}
	if from == to {
		return nil
	}
	moved := q.images[from]
	if from < to {
		copy(q.images[from:to], q.images[from+1:to+1])
	} else {
		copy(q.images[to+1:from+1], q.images[to:from])
	}
	q.images[to] = moved
	return nil
}

// Rotate adds delta degrees to the image's rotation, wrapping into [0, 360).
func (q *Queue) Rotate(id string, delta int) (model.ImageRecord, error) {
	i := q.Index(id)
	if i < 0 {
		return model.ImageRecord{}, fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	q.images[i].RotationDegrees = normalizeRotation(q.images[i].RotationDegrees + delta)
	return q.images[i].Clone(), nil
}

// SetProcessingSettings replaces the image's settings wholesale. A nil value
// resets the image to the default settings.
func (q *Queue) SetProcessingSettings(id string, settings *model.ProcessingSettings) (model.ImageRecord, error) {
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return model.ImageRecord{}, err
		}
	}
	i := q.Index(id)
	if i < 0 {
		return model.ImageRecord{}, fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	if settings == nil {
		q.images[i].Settings = nil
	} else {
		s := *settings
		q.images[i].Settings = &s
	}
	return q.images[i].Clone(), nil
}

// Index returns the position of id, or -1.
func (q *Queue) Index(id string) int {
	for i := range q.images {
		if q.images[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the record with the given id.
func (q *Queue) Get(id string) (model.ImageRecord, bool) {
	i := q.Index(id)
	if i < 0 {
		return model.ImageRecord{}, false
	}
	return q.images[i].Clone(), true
}

// At returns a copy of the record at position i.
func (q *Queue) At(i int) (model.ImageRecord, bool) {
	if i < 0 || i >= len(q.images) {
		return model.ImageRecord{}, false
	}
	return q.images[i].Clone(), true
}

// Contains reports whether a record with the given source path is queued.
func (q *Queue) Contains(path string) bool {
	_, ok := q.paths[path]
	return ok
}

// Len returns the number of queued images.
func (q *Queue) Len() int {
	return len(q.images)
}

// Images returns a snapshot of the queue in order.
func (q *Queue) Images() []model.ImageRecord {
	out := make([]model.ImageRecord, len(q.images))
	for i := range q.images {
		out[i] = q.images[i].Clone()
	}
	return out
}

func normalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

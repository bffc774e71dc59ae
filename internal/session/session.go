package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ironsheep/scan-workbench/internal/model"
)

var (
	// ErrInvalidArgument marks caller errors such as out-of-range indices.
	// It is the same value as model.ErrInvalidArgument so a single errors.Is
	// check covers validation failures from both packages.
	ErrInvalidArgument = model.ErrInvalidArgument

	ErrUnknownImage  = errors.New("unknown image")
	ErrUnknownRegion = errors.New("unknown region")
)

// EventType identifies which part of the session changed.
type EventType int

const (
	ImagesChanged EventType = iota
	RegionsChanged
	ResultsChanged
	FocusChanged
)

func (t EventType) String() string {
	switch t {
	case ImagesChanged:
		return "images"
	case RegionsChanged:
		return "regions"
	case ResultsChanged:
		return "results"
	case FocusChanged:
		return "focus"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// View holds the derived values recomputed after every change.
type View struct {
	CurrentIndex int
	// Current is nil when CurrentIndex does not address a queued image.
	Current *model.ImageRecord
	Total   int
}

// Event is delivered to subscribers after a mutation has fully completed.
type Event struct {
	Type EventType
	View View
}

// Listener receives session events.
type Listener func(Event)

// Session owns the image queue, the region ledger and the result ledger.
//
// All methods are safe for concurrent use. Each mutation runs under one lock
// and replaces whole entities, so readers and listeners never observe a
// half-applied change. Listeners run after the lock is released, in
// registration order, and may call back into the session.
type Session struct {
	mu           sync.RWMutex
	queue        *Queue
	regions      *RegionLedger
	results      *ResultLedger
	currentIndex int

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]Listener
	order       []int
}

// New creates an empty session.
func New() *Session {
	return &Session{
		queue:     NewQueue(),
		regions:   NewRegionLedger(),
		results:   NewResultLedger(),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) emit(view View, types ...EventType) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.listenersMu.Unlock()

	for _, t := range types {
		ev := Event{Type: t, View: view}
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// viewLocked computes the derived view. Callers hold s.mu.
func (s *Session) viewLocked() View {
	v := View{CurrentIndex: s.currentIndex, Total: s.queue.Len()}
	if rec, ok := s.queue.At(s.currentIndex); ok {
		v.Current = &rec
	}
	return v
}

// View returns the current derived view.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

// CurrentImage returns the image in focus, if any.
func (s *Session) CurrentImage() (model.ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.At(s.currentIndex)
}

// TotalImages returns the queue length.
func (s *Session) TotalImages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Len()
}

// SetCurrentIndex moves the focus. The index must address a queued image.
func (s *Session) SetCurrentIndex(i int) error {
	s.mu.Lock()
	if i < 0 || i >= s.queue.Len() {
		n := s.queue.Len()
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d outside queue of %d", ErrInvalidArgument, i, n)
	}
	s.currentIndex = i
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, FocusChanged)
	return nil
}

// === Image Queue ===

// AddImages appends the images whose source path is not queued yet and
// returns the ones that were added.
func (s *Session) AddImages(images ...model.ImageRecord) []model.ImageRecord {
	s.mu.Lock()
	added := s.queue.Add(images...)
	view := s.viewLocked()
	s.mu.Unlock()

	if len(added) > 0 {
		s.emit(view, ImagesChanged)
	}
	return added
}

// RemoveImage removes an image together with its regions. Cards already
// produced for the image are kept. Removing an absent id does nothing.
func (s *Session) RemoveImage(id string) bool {
	s.mu.Lock()
	removed := s.queue.Remove(id)
	if removed {
		s.regions.Delete(id)
	}
	view := s.viewLocked()
	s.mu.Unlock()

	if removed {
		s.emit(view, ImagesChanged, RegionsChanged)
	}
	return removed
}

// ReorderImages moves the image at from to position to.
func (s *Session) ReorderImages(from, to int) error {
	s.mu.Lock()
	if err := s.queue.Reorder(from, to); err != nil {
		s.mu.Unlock()
		return err
	}
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, ImagesChanged)
	return nil
}

// RotateImage adds delta degrees to the image's rotation.
func (s *Session) RotateImage(id string, delta int) (model.ImageRecord, error) {
	s.mu.Lock()
	rec, err := s.queue.Rotate(id, delta)
	view := s.viewLocked()
	s.mu.Unlock()

	if err != nil {
		return model.ImageRecord{}, err
	}
	s.emit(view, ImagesChanged)
	return rec, nil
}

// SetProcessingSettings replaces the image's processing settings; nil resets
// them to the defaults.
func (s *Session) SetProcessingSettings(id string, settings *model.ProcessingSettings) (model.ImageRecord, error) {
	s.mu.Lock()
	rec, err := s.queue.SetProcessingSettings(id, settings)
	view := s.viewLocked()
	s.mu.Unlock()

	if err != nil {
		return model.ImageRecord{}, err
	}
	s.emit(view, ImagesChanged)
	return rec, nil
}

// Image returns a copy of the record with the given id.
func (s *Session) Image(id string) (model.ImageRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Get(id)
}

// HasPath reports whether an image with this source path is queued.
func (s *Session) HasPath(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Contains(path)
}

// Images returns the queue in order.
func (s *Session) Images() []model.ImageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Images()
}

// === Region Ledger ===

// SetRegions replaces the regions of a queued image.
func (s *Session) SetRegions(imageID string, regions []model.Region) error {
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return s.mutateRegions(imageID, func(l *RegionLedger) error {
		l.SetRegions(imageID, regions)
		return nil
	})
}

// AddRegion appends a region to a queued image. After RemoveImage the id is
// no longer queued, so AddRegion fails with ErrUnknownImage rather than
// starting a fresh list that no image would own.
func (s *Session) AddRegion(imageID string, region model.Region) error {
	if err := region.Validate(); err != nil {
		return err
	}
	return s.mutateRegions(imageID, func(l *RegionLedger) error {
		l.AddRegion(imageID, region)
		return nil
	})
}

// UpdateRegion replaces the fields of an existing region in place.
func (s *Session) UpdateRegion(imageID string, region model.Region) error {
	if err := region.Validate(); err != nil {
		return err
	}
	return s.mutateRegions(imageID, func(l *RegionLedger) error {
		return l.UpdateRegion(imageID, region)
	})
}

// RemoveRegion drops a region; absent regions are ignored.
func (s *Session) RemoveRegion(imageID, regionID string) {
	s.mu.Lock()
	changed := s.regions.RemoveRegion(imageID, regionID)
	view := s.viewLocked()
	s.mu.Unlock()

	if changed {
		s.emit(view, RegionsChanged)
	}
}

func (s *Session) mutateRegions(imageID string, fn func(*RegionLedger) error) error {
	s.mu.Lock()
	if s.queue.Index(imageID) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownImage, imageID)
	}
	if err := fn(s.regions); err != nil {
		s.mu.Unlock()
		return err
	}
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, RegionsChanged)
	return nil
}

// Regions returns the image's regions in order.
func (s *Session) Regions(imageID string) []model.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions.Regions(imageID)
}

// Region looks up one region.
func (s *Session) Region(imageID, regionID string) (model.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions.Region(imageID, regionID)
}

// === Result Ledger ===

// UpsertCard stores a card, replacing any card for the same image wholesale.
func (s *Session) UpsertCard(card model.OutputCard) {
	s.mu.Lock()
	s.results.UpsertCard(card)
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, ResultsChanged)
}

// MergeRegionResult folds one region result into the image's card, creating
// the card on first use. The read-modify-write happens under the session
// lock, so concurrent merges for different regions never lose each other.
func (s *Session) MergeRegionResult(imageID, imageName string, result model.RegionResult) model.OutputCard {
	s.mu.Lock()
	card, ok := s.results.Card(imageID)
	if !ok {
		card = model.OutputCard{ImageID: imageID, ImageName: imageName}
	}
	card = card.WithResult(result)
	s.results.UpsertCard(card)
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, ResultsChanged)
	return card
}

// EditCell overwrites the text of one recognized cell and marks it as
// manually edited. The recognized text stays available as OriginalText.
func (s *Session) EditCell(imageID, regionID string, row, col int, text string) error {
	s.mu.Lock()
	card, ok := s.results.Card(imageID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: no card for image %s", ErrUnknownRegion, imageID)
	}
	idx := -1
	for i := range card.Results {
		if card.Results[i].RegionID == regionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrUnknownRegion, imageID, regionID)
	}
	cells := card.Results[idx].Cells
	if row < 0 || row >= len(cells) || col < 0 || col >= len(cells[row]) {
		s.mu.Unlock()
		return fmt.Errorf("%w: cell (%d,%d) outside result grid", ErrInvalidArgument, row, col)
	}
	cells[row][col].Text = text
	cells[row][col].ManuallyEdited = true
	s.results.UpsertCard(card)
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, ResultsChanged)
	return nil
}

// ClearResults drops every card regardless of queue or region state.
func (s *Session) ClearResults() {
	s.mu.Lock()
	s.results.Clear()
	view := s.viewLocked()
	s.mu.Unlock()

	s.emit(view, ResultsChanged)
}

// Card returns the image's card.
func (s *Session) Card(imageID string) (model.OutputCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results.Card(imageID)
}

// Cards returns every card.
func (s *Session) Cards() []model.OutputCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results.Cards()
}

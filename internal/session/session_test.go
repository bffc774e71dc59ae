package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ironsheep/scan-workbench/internal/model"
)

func newSessionWith(t *testing.T, ids ...string) *Session {
	t.Helper()
	s := New()
	recs := make([]model.ImageRecord, len(ids))
	for i, id := range ids {
		recs[i] = img(id, id+".png")
	}
	s.AddImages(recs...)
	return s
}

func TestSession_RemoveImageCascadesRegions(t *testing.T) {
	s := newSessionWith(t, "A", "B")
	if err := s.SetRegions("A", []model.Region{region("r1"), region("r2")}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRegion("B", region("r9")); err != nil {
		t.Fatal(err)
	}

	if !s.RemoveImage("A") {
		t.Fatal("RemoveImage should report removal")
	}
	if got := s.Regions("A"); len(got) != 0 {
		t.Errorf("regions of removed image: got %d, want 0", len(got))
	}
	if got := s.Regions("B"); len(got) != 1 {
		t.Errorf("regions of other image: got %d, want 1", len(got))
	}

	// the invariant forbids regions for an image that is not queued
	if err := s.AddRegion("A", region("r3")); !errors.Is(err, ErrUnknownImage) {
		t.Errorf("AddRegion on removed image: got %v, want ErrUnknownImage", err)
	}

	// once re-queued the image starts from a fresh single-entry list
	s.AddImages(img("A", "A.png"))
	if err := s.AddRegion("A", region("r3")); err != nil {
		t.Fatalf("AddRegion after re-queue: %v", err)
	}
	if got := s.Regions("A"); len(got) != 1 || got[0].ID != "r3" {
		t.Errorf("regions after re-queue: got %+v", got)
	}
}

func TestSession_RemoveImageKeepsCards(t *testing.T) {
	s := newSessionWith(t, "A")
	s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r1", RawText: "x"})
	s.RemoveImage("A")

	if _, ok := s.Card("A"); !ok {
		t.Error("card should survive image removal")
	}
}

func TestSession_ReorderKeepsRegionIdentity(t *testing.T) {
	s := newSessionWith(t, "A", "B", "C")
	if err := s.AddRegion("A", region("ra")); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRegion("C", region("rc")); err != nil {
		t.Fatal(err)
	}

	if err := s.ReorderImages(0, 2); err != nil {
		t.Fatalf("ReorderImages: %v", err)
	}

	var ids []string
	for _, rec := range s.Images() {
		ids = append(ids, rec.ID)
	}
	if !equalIDs(ids, []string{"B", "C", "A"}) {
		t.Errorf("order: got %v, want [B C A]", ids)
	}
	if r := s.Regions("A"); len(r) != 1 || r[0].ID != "ra" {
		t.Errorf("regions of A after reorder: %+v", r)
	}
	if r := s.Regions("C"); len(r) != 1 || r[0].ID != "rc" {
		t.Errorf("regions of C after reorder: %+v", r)
	}

	if err := s.ReorderImages(0, 5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of range reorder: got %v, want ErrInvalidArgument", err)
	}
}

func TestSession_RegionValidation(t *testing.T) {
	s := newSessionWith(t, "A")

	bad := model.Region{ID: "r1", X: -5, Width: 10, Height: 10}
	if err := s.AddRegion("A", bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AddRegion negative x: got %v", err)
	}
	if err := s.SetRegions("A", []model.Region{region("ok"), bad}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetRegions with bad region: got %v", err)
	}
	if got := s.Regions("A"); len(got) != 0 {
		t.Errorf("rejected regions were stored: %+v", got)
	}
}

func TestSession_MergeRegionResult(t *testing.T) {
	s := newSessionWith(t, "A")

	s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r1", RawText: "one"})
	s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r2", RawText: "two"})
	card, ok := s.Card("A")
	if !ok || len(card.Results) != 2 {
		t.Fatalf("card: got %+v, want two results", card)
	}

	s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r1", RawText: "one again"})
	card, _ = s.Card("A")
	if len(card.Results) != 2 {
		t.Fatalf("results after re-process: got %d, want 2", len(card.Results))
	}
	if card.Results[0].RawText != "one again" || card.Results[1].RawText != "two" {
		t.Errorf("results: got %+v", card.Results)
	}
	if len(s.Cards()) != 1 {
		t.Errorf("cards: got %d, want 1", len(s.Cards()))
	}
}

func TestSession_MergeIsConfluent(t *testing.T) {
	results := []model.RegionResult{
		{RegionID: "r1", RawText: "alpha"},
		{RegionID: "r2", RawText: "beta"},
	}
	orders := [][]int{{0, 1}, {1, 0}}

	var cards []model.OutputCard
	for _, order := range orders {
		s := newSessionWith(t, "A")
		s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r1", RawText: "stale"})
		for _, i := range order {
			s.MergeRegionResult("A", "A.png", results[i])
		}
		card, _ := s.Card("A")
		cards = append(cards, card)
	}

	for _, c := range cards {
		texts := map[string]string{}
		for _, r := range c.Results {
			texts[r.RegionID] = r.RawText
		}
		if len(texts) != 2 || texts["r1"] != "alpha" || texts["r2"] != "beta" {
			t.Errorf("card contents differ by arrival order: %+v", c.Results)
		}
	}
}

func TestSession_ConcurrentMergesDoNotLoseResults(t *testing.T) {
	s := newSessionWith(t, "A")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: fmt.Sprintf("r%d", i)})
		}(i)
	}
	wg.Wait()

	card, _ := s.Card("A")
	if len(card.Results) != n {
		t.Errorf("results: got %d, want %d", len(card.Results), n)
	}
}

func TestSession_ClearResults(t *testing.T) {
	s := newSessionWith(t, "A")
	if err := s.AddRegion("A", region("r1")); err != nil {
		t.Fatal(err)
	}
	s.MergeRegionResult("A", "A.png", model.RegionResult{RegionID: "r1"})
	s.UpsertCard(model.OutputCard{ImageID: "gone", ImageName: "gone.png"})

	s.ClearResults()

	if n := len(s.Cards()); n != 0 {
		t.Errorf("cards after clear: got %d", n)
	}
	if s.TotalImages() != 1 || len(s.Regions("A")) != 1 {
		t.Error("ClearResults must not touch the queue or regions")
	}
}

func TestSession_EditCell(t *testing.T) {
	s := newSessionWith(t, "A")
	s.MergeRegionResult("A", "A.png", model.RegionResult{
		RegionID: "r1",
		Cells:    [][]model.OcrCell{{{Text: "l0", OriginalText: "l0", Confidence: 0.4}}},
	})

	if err := s.EditCell("A", "r1", 0, 0, "10"); err != nil {
		t.Fatalf("EditCell: %v", err)
	}
	card, _ := s.Card("A")
	cell := card.Results[0].Cells[0][0]
	if cell.Text != "10" || cell.OriginalText != "l0" || !cell.ManuallyEdited {
		t.Errorf("cell: got %+v", cell)
	}

	if err := s.EditCell("A", "r1", 1, 0, "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("out of range row: got %v", err)
	}
	if err := s.EditCell("A", "nope", 0, 0, "x"); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("unknown region: got %v", err)
	}
	if err := s.EditCell("B", "r1", 0, 0, "x"); !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("unknown card: got %v", err)
	}
}

func TestSession_DerivedViews(t *testing.T) {
	s := newSessionWith(t, "A", "B", "C")

	if cur, ok := s.CurrentImage(); !ok || cur.ID != "A" {
		t.Errorf("initial current: got %+v", cur)
	}
	if err := s.SetCurrentIndex(2); err != nil {
		t.Fatal(err)
	}
	if v := s.View(); v.Current == nil || v.Current.ID != "C" || v.Total != 3 {
		t.Errorf("view: %+v", v)
	}

	s.RemoveImage("C")
	v := s.View()
	if v.Current != nil {
		t.Errorf("current should be empty when the index falls off the queue, got %+v", v.Current)
	}
	if v.Total != 2 {
		t.Errorf("total: got %d, want 2", v.Total)
	}

	if err := s.SetCurrentIndex(2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetCurrentIndex past end: got %v", err)
	}
}

func TestSession_Subscribe(t *testing.T) {
	s := New()

	var mu sync.Mutex
	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	s.AddImages(img("A", "a.png"))
	s.AddImages(img("A2", "a.png")) // duplicate, no change
	if err := s.AddRegion("A", region("r1")); err != nil {
		t.Fatal(err)
	}
	s.RemoveImage("A")

	mu.Lock()
	got := make([]EventType, len(events))
	for i, ev := range events {
		got[i] = ev.Type
	}
	last := events[len(events)-1]
	mu.Unlock()

	want := []EventType{ImagesChanged, RegionsChanged, ImagesChanged, RegionsChanged}
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if last.View.Total != 0 {
		t.Errorf("view in final event: total %d, want 0", last.View.Total)
	}

	unsubscribe()
	unsubscribe()
	s.AddImages(img("B", "b.png"))
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestSession_ListenerSeesCompletedState(t *testing.T) {
	s := newSessionWith(t, "A")
	if err := s.AddRegion("A", region("r1")); err != nil {
		t.Fatal(err)
	}

	regionsDuringEvent := -1
	s.Subscribe(func(ev Event) {
		if ev.Type == ImagesChanged {
			// calling back into the session must not deadlock
			regionsDuringEvent = len(s.Regions("A"))
		}
	})
	s.RemoveImage("A")

	if regionsDuringEvent != 0 {
		t.Errorf("listener saw %d regions for a removed image", regionsDuringEvent)
	}
}

package session

import (
	"fmt"

	"github.com/ironsheep/scan-workbench/internal/model"
)

// RegionLedger maps an image id to its ordered region list.
//
// The ledger itself does not know which images exist; Session keeps it in
// step with the queue. Every update replaces the image's list with a new
// slice, so a list handed out earlier is never modified afterwards.
type RegionLedger struct {
	regions map[string][]model.Region
}

// NewRegionLedger creates an empty ledger.
func NewRegionLedger() *RegionLedger {
	return &RegionLedger{regions: make(map[string][]model.Region)}
}

// SetRegions replaces the whole region list of an image.
func (l *RegionLedger) SetRegions(imageID string, regions []model.Region) {
	l.regions[imageID] = append([]model.Region(nil), regions...)
}

// AddRegion appends a region, creating the image's list when needed. Region
// ids must be unique within the image; that is checked when the region is
// created, not here.
func (l *RegionLedger) AddRegion(imageID string, region model.Region) {
	cur := l.regions[imageID]
	next := make([]model.Region, len(cur), len(cur)+1)
	copy(next, cur)
	l.regions[imageID] = append(next, region)
}

// RemoveRegion drops a region by id. It reports whether anything changed.
func (l *RegionLedger) RemoveRegion(imageID, regionID string) bool {
	cur, ok := l.regions[imageID]
	if !ok {
		return false
	}
	next := make([]model.Region, 0, len(cur))
	for _, r := range cur {
		if r.ID != regionID {
			next = append(next, r)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	l.regions[imageID] = next
	return true
}

// UpdateRegion replaces the fields of an existing region, keeping its id and
// position.
func (l *RegionLedger) UpdateRegion(imageID string, region model.Region) error {
	cur := l.regions[imageID]
	for i := range cur {
		if cur[i].ID == region.ID {
			next := append([]model.Region(nil), cur...)
			next[i] = region
			l.regions[imageID] = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", ErrUnknownRegion, imageID, region.ID)
}

// Delete removes the image's entry entirely.
func (l *RegionLedger) Delete(imageID string) {
	delete(l.regions, imageID)
}

// Regions returns a copy of the image's regions; empty when it has none.
func (l *RegionLedger) Regions(imageID string) []model.Region {
	return append([]model.Region{}, l.regions[imageID]...)
}

// Region looks up one region.
func (l *RegionLedger) Region(imageID, regionID string) (model.Region, bool) {
	for _, r := range l.regions[imageID] {
		if r.ID == regionID {
			return r, true
		}
	}
	return model.Region{}, false
}

// ImageIDs returns the ids that currently have an entry, in no particular order.
func (l *RegionLedger) ImageIDs() []string {
	ids := make([]string, 0, len(l.regions))
	for id := range l.regions {
		ids = append(ids, id)
	}
	return ids
}

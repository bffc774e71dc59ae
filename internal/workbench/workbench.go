package workbench

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ironsheep/scan-workbench/internal/gateway"
	"github.com/ironsheep/scan-workbench/internal/logging"
	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/session"
)

// forgetter is implemented by backends that hold per-image state.
type forgetter interface {
	Forget(imageID string)
}

// Workbench turns user actions into gateway requests and folds the
// responses back into the session.
//
// Gateway calls run outside the session lock. Each request captures the
// image's rotation, settings and region when it is issued; edits made while
// a request is in flight do not change it. Results are merged keyed by
// image and region, so concurrent requests for different regions never
// overwrite each other. Two in-flight requests for the same region race and
// the last response wins.
type Workbench struct {
	session *session.Session
	gw      gateway.Gateway
	log     *logging.Logger
}

// New creates a workbench over s and gw.
func New(s *session.Session, gw gateway.Gateway, log *logging.Logger) *Workbench {
	if log == nil {
		log = logging.Discard()
	}
	return &Workbench{session: s, gw: gw, log: log}
}

// Session returns the session the workbench updates.
func (w *Workbench) Session() *session.Session {
	return w.session
}

// Ingest loads the given files and queues them in order.
//
// Paths already queued, and repeats within paths, are skipped without a
// backend call. Loads run concurrently; the images that loaded are added in
// the order their paths were given. Failed loads leave no trace in the
// session and are reported together in the returned error.
func (w *Workbench) Ingest(ctx context.Context, paths []string) ([]model.ImageRecord, error) {
	seen := make(map[string]struct{}, len(paths))
	var pending []string
	for _, p := range paths {
		if _, dup := seen[p]; dup || w.session.HasPath(p) {
			w.log.Debug("skipping queued image", "path", p)
			continue
		}
		seen[p] = struct{}{}
		pending = append(pending, p)
	}

	tasks := make([]*gateway.Task[*model.ImageRecord], len(pending))
	for i, p := range pending {
		path := p
		tasks[i] = gateway.Go(ctx, func(ctx context.Context) (*model.ImageRecord, error) {
			return w.gw.LoadImage(ctx, path)
		})
	}

	var loaded []model.ImageRecord
	var errs []error
	for i, task := range tasks {
		record, err := task.Result()
		if err != nil {
			w.log.Warn("image load failed", "path", pending[i], "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", pending[i], err))
			continue
		}
		loaded = append(loaded, *record)
	}

	added := w.session.AddImages(loaded...)
	w.forgetDropped(loaded, added)
	w.log.Info("images ingested", "requested", len(paths), "added", len(added), "failed", len(errs))
	return added, errors.Join(errs...)
}

// forgetDropped releases backend state for loaded records the queue refused,
// which happens when a concurrent Ingest queued the same path first.
func (w *Workbench) forgetDropped(loaded, added []model.ImageRecord) {
	if len(added) == len(loaded) {
		return
	}
	f, ok := w.gw.(forgetter)
	if !ok {
		return
	}
	kept := make(map[string]struct{}, len(added))
	for _, r := range added {
		kept[r.ID] = struct{}{}
	}
	for _, r := range loaded {
		if _, ok := kept[r.ID]; !ok {
			w.log.Debug("dropping duplicate load", "path", r.SourcePath, "id", r.ID)
			f.Forget(r.ID)
		}
	}
}

// RemoveImage removes an image and its regions from the session and lets the
// backend drop anything it holds for it. Cards stay.
func (w *Workbench) RemoveImage(imageID string) bool {
	removed := w.session.RemoveImage(imageID)
	if removed {
		if f, ok := w.gw.(forgetter); ok {
			f.Forget(imageID)
		}
	}
	return removed
}

// ProcessRegion starts recognition of one region. On success the result is
// merged into the image's card; on failure the session is left unchanged.
func (w *Workbench) ProcessRegion(ctx context.Context, imageID, regionID string) *gateway.Task[*model.RegionResult] {
	image, ok := w.session.Image(imageID)
	if !ok {
		return gateway.Failed[*model.RegionResult](fmt.Errorf("%w: %s", session.ErrUnknownImage, imageID))
	}
	region, ok := w.session.Region(imageID, regionID)
	if !ok {
		return gateway.Failed[*model.RegionResult](fmt.Errorf("%w: %s/%s", session.ErrUnknownRegion, imageID, regionID))
	}
	return w.process(ctx, image, region)
}

func (w *Workbench) process(ctx context.Context, image model.ImageRecord, region model.Region) *gateway.Task[*model.RegionResult] {
	req := gateway.NewRegionRequest(image.ID, region, image.RotationDegrees).
		WithSettings(image.EffectiveSettings())

	return gateway.Go(ctx, func(ctx context.Context) (*model.RegionResult, error) {
		result, err := w.gw.ProcessRegion(ctx, req)
		if err != nil {
			w.log.Warn("region processing failed", "image", image.ID, "region", region.ID, "error", err)
			return nil, err
		}
		w.session.MergeRegionResult(image.ID, image.Name, *result)
		w.log.Debug("region processed", "image", image.ID, "region", region.ID, "rows", len(result.Cells))
		return result, nil
	})
}

// ProcessImage recognizes every region of an image concurrently and returns
// the image's card once all requests have finished. Failures are joined;
// regions that succeeded are merged regardless.
func (w *Workbench) ProcessImage(ctx context.Context, imageID string) (model.OutputCard, error) {
	image, ok := w.session.Image(imageID)
	if !ok {
		return model.OutputCard{}, fmt.Errorf("%w: %s", session.ErrUnknownImage, imageID)
	}

	regions := w.session.Regions(imageID)
	tasks := make([]*gateway.Task[*model.RegionResult], len(regions))
	for i, region := range regions {
		tasks[i] = w.process(ctx, image, region)
	}

	var errs []error
	for i, task := range tasks {
		if _, err := task.Result(); err != nil {
			errs = append(errs, fmt.Errorf("region %s: %w", regions[i].ID, err))
		}
	}

	card, ok := w.session.Card(imageID)
	if !ok {
		card = model.OutputCard{ImageID: image.ID, ImageName: image.Name, Results: []model.RegionResult{}}
	}
	return card, errors.Join(errs...)
}

// ProcessAll processes every queued image concurrently.
func (w *Workbench) ProcessAll(ctx context.Context) error {
	images := w.session.Images()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, image := range images {
		wg.Add(1)
		go func(id, name string) {
			defer wg.Done()
			if _, err := w.ProcessImage(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}(image.ID, image.Name)
	}
	wg.Wait()

	w.log.Info("batch processed", "images", len(images), "failed", len(errs))
	return errors.Join(errs...)
}

// Preview renders an image with hypothetical settings. The session is not
// changed.
func (w *Workbench) Preview(ctx context.Context, imageID string, settings model.ProcessingSettings) (string, error) {
	if err := settings.Validate(); err != nil {
		return "", err
	}
	image, ok := w.session.Image(imageID)
	if !ok {
		return "", fmt.Errorf("%w: %s", session.ErrUnknownImage, imageID)
	}
	return w.gw.PreprocessImage(ctx, image.SourcePath, settings)
}

// LoadFull returns an image at full resolution.
func (w *Workbench) LoadFull(ctx context.Context, imageID string) (string, error) {
	image, ok := w.session.Image(imageID)
	if !ok {
		return "", fmt.Errorf("%w: %s", session.ErrUnknownImage, imageID)
	}
	return w.gw.LoadImageFull(ctx, image.SourcePath)
}

// Export saves every current card and returns the written path.
func (w *Workbench) Export(ctx context.Context, format model.ExportFormat) (string, error) {
	if _, err := model.ParseExportFormat(string(format)); err != nil {
		return "", err
	}
	cards := w.session.Cards()
	path, err := w.gw.SaveResults(ctx, cards, format)
	if err != nil {
		return "", err
	}
	w.log.Info("results exported", "path", path, "cards", len(cards))
	return path, nil
}

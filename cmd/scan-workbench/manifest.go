package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/scan-workbench/internal/model"
	"github.com/ironsheep/scan-workbench/internal/session"
)

// manifest describes the regions to recognize in each image. JSON is
// accepted as well, being valid YAML.
//
//	images:
//	  - path: scans/invoice-01.png
//	    rotation: 90
//	    settings: {blurRadius: 1, threshold: -1}
//	    regions:
//	      - {x: 40, y: 120, width: 400, height: 300, label: items, numeric: false}
type manifest struct {
	Images []manifestImage `yaml:"images"`
}

type manifestImage struct {
	Path     string                    `yaml:"path"`
	Rotation int                       `yaml:"rotation"`
	Settings *model.ProcessingSettings `yaml:"settings"`
	Regions  []manifestRegion          `yaml:"regions"`
}

type manifestRegion struct {
	ID      string  `yaml:"id"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Label   string  `yaml:"label"`
	Numeric bool    `yaml:"numeric"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return parseManifest(data)
}

func parseManifest(data []byte) (*manifest, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for i, img := range m.Images {
		if img.Path == "" {
			return nil, fmt.Errorf("manifest image %d: missing path", i+1)
		}
		if img.Settings != nil {
			if err := img.Settings.Validate(); err != nil {
				return nil, fmt.Errorf("manifest image %s: %w", img.Path, err)
			}
		}
	}
	return &m, nil
}

// paths returns the image paths in manifest order.
func (m *manifest) paths() []string {
	paths := make([]string, len(m.Images))
	for i, img := range m.Images {
		paths[i] = img.Path
	}
	return paths
}

// lookup finds the entry for a loaded image by exact path, then by base
// name.
func (m *manifest) lookup(record model.ImageRecord) (*manifestImage, bool) {
	for i := range m.Images {
		if m.Images[i].Path == record.SourcePath {
			return &m.Images[i], true
		}
	}
	for i := range m.Images {
		if filepath.Base(m.Images[i].Path) == record.Name {
			return &m.Images[i], true
		}
	}
	return nil, false
}

// apply stores the entry's rotation, settings and regions on a queued image.
// Regions without an id get a fresh one.
func (e *manifestImage) apply(s *session.Session, imageID string) error {
	if e.Rotation != 0 {
		if _, err := s.RotateImage(imageID, e.Rotation); err != nil {
			return err
		}
	}
	if e.Settings != nil {
		if _, err := s.SetProcessingSettings(imageID, e.Settings); err != nil {
			return err
		}
	}

	regions := make([]model.Region, len(e.Regions))
	for i, r := range e.Regions {
		id := r.ID
		if id == "" {
			id = model.NewID()
		}
		regions[i] = model.Region{
			ID:          id,
			X:           r.X,
			Y:           r.Y,
			Width:       r.Width,
			Height:      r.Height,
			Label:       r.Label,
			NumericHint: r.Numeric,
		}
	}
	return s.SetRegions(imageID, regions)
}

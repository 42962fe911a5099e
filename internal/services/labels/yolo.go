package labels

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PatternPull/internal/domain/models"
)

// ManifestName is the class manifest written next to the label files.
const ManifestName = "dataset.yaml"

// ErrUnknownClass is returned when a box carries a class id the map does not name.
var ErrUnknownClass = errors.New("unknown label class")

// ClassMap names label class ids.
type ClassMap map[int]string

var (
	// DirectionalClasses separates long and short clusters.
	DirectionalClasses = ClassMap{0: "LONG", 1: "SHORT"}
	// SingleClass labels every cluster the same.
	SingleClass = ClassMap{0: "cluster"}
)

// IDs returns the class ids in ascending order.
func (m ClassMap) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FormatLine renders a box as one label line.
func FormatLine(b models.BoundingBox) string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", b.ClassID, b.CX, b.CY, b.W, b.H)
}

var symbolCleaner = strings.NewReplacer("-", "", "_", "")

// FileStem builds the base name shared by a sample's label and image files.
func FileStem(symbol string, dir models.Direction, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%s", symbolCleaner.Replace(symbol), dir, ts.UTC().Format("20060102_1504"))
}

// Writer stores label files in a single directory.
type Writer struct {
	dir     string
	classes ClassMap
}

// NewWriter creates dir if needed.
func NewWriter(dir string, classes ClassMap) (*Writer, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("labels: empty class map")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("labels: create dir: %w", err)
	}
	return &Writer{dir: dir, classes: classes}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores one labeled signal and returns the file path.
func (w *Writer) Write(s models.LabeledSignal) (string, error) {
	if _, ok := w.classes[s.Box.ClassID]; !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, s.Box.ClassID)
	}
	path := filepath.Join(w.dir, FileStem(s.Event.Symbol, s.Event.Direction, s.Event.Timestamp)+".txt")
	if err := os.WriteFile(path, []byte(FormatLine(s.Box)+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("labels: write %s: %w", path, err)
	}
	return path, nil
}

// WriteAll stores every signal, stopping at the first failure.
func (w *Writer) WriteAll(signals []models.LabeledSignal) ([]string, error) {
	paths := make([]string, 0, len(signals))
	for _, s := range signals {
		p, err := w.Write(s)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type manifest struct {
	Path  string         `yaml:"path"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// WriteManifest writes the class manifest into the output directory.
func (w *Writer) WriteManifest() (string, error) {
	abs, err := filepath.Abs(w.dir)
	if err != nil {
		abs = w.dir
	}
	data, err := yaml.Marshal(manifest{Path: abs, NC: len(w.classes), Names: w.classes})
	if err != nil {
		return "", fmt.Errorf("labels: marshal manifest: %w", err)
	}
	path := filepath.Join(w.dir, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("labels: write manifest: %w", err)
	}
	return path, nil
}

package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/synthlearn/synthlearn/pkg/models"
)

// JSONExporter writes the complete dataset, metrics included, as one JSON
// document.
type JSONExporter struct {
	// Indent enables pretty-printed output.
	Indent bool
}

// Name returns the exporter name.
func (e *JSONExporter) Name() string {
	return "json"
}

// Export writes the dataset to w.
func (e *JSONExporter) Export(w io.Writer, dataset *models.Dataset) error {
	enc := json.NewEncoder(w)
	if e.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(dataset); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}

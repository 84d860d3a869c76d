package data

import (
	"encoding/json"
	"fmt"
	"os"

	"bidding-arena/internal/model"
)

// LoadImpressionsJSON reads an impression dataset file and normalizes
// sequence indices to the record order.
func LoadImpressionsJSON(path string) ([]model.Impression, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file model.ImpressionFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Normalize(file.Impressions), nil
}

// Normalize reassigns sequence indices by position. The replay engine relies
// on them as the ordering key, so trust position over whatever the file says.
func Normalize(impressions []model.Impression) []model.Impression {
	for i := range impressions {
		impressions[i].Sequence = i
	}
	return impressions
}

// WriteImpressionsJSON writes a dataset in the shape LoadImpressionsJSON
// expects.
func WriteImpressionsJSON(path string, impressions []model.Impression) error {
	raw, err := json.MarshalIndent(model.ImpressionFile{Impressions: impressions}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

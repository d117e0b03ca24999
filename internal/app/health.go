package app

import (
	"encoding/json"
	"time"

	"github.com/forgeloop/forgeloop/internal/util"
)

// Health represents the health.json structure written after every session
type Health struct {
	TS        string `json:"ts"`
	Session   int    `json:"session"`
	FeatureID string `json:"feature_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
}

// WriteHealth writes the harness health status atomically
func WriteHealth(path string, sessionCount int, featureID string, ok bool, errMsg string) error {
	h := Health{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		Session:   sessionCount,
		FeatureID: featureID,
		OK:        ok,
		Error:     errMsg,
	}
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, b, 0o644)
}

// ReadHealth loads health.json, returning nil if the file does not exist
func ReadHealth(path string) (*Health, error) {
	data, err := readFileIfExists(path)
	if err != nil || data == nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

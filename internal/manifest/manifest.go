package manifest

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/inful/mdfp"
)

// FileName is the manifest written at the output root.
const FileName = "manifest.json"

// BuildManifest records what a build read and wrote.
type BuildManifest struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Status     string    `json:"status"`
	Duration   int64     `json:"duration_ms"`
	Documents  []Entry   `json:"documents"`
	// Containers lists the reference containers that were reachable.
	Containers []string `json:"containers,omitempty"`
}

// Entry describes one produced document.
type Entry struct {
	Key         string   `json:"key"`
	Kind        string   `json:"kind"`
	Group       string   `json:"group,omitempty"`
	OutputPath  string   `json:"output_path"`
	Fingerprint string   `json:"fingerprint"`
	UIDs        []string `json:"uids,omitempty"`
	References  []string `json:"references,omitempty"`
	Dangling    []string `json:"dangling_links,omitempty"`
}

// Fingerprint computes the content fingerprint of a document from its
// metadata block and body.
func Fingerprint(metadata, body string) string {
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(metadata, "\n"), body)
}

// Add appends e, keeping entries sorted by key.
func (m *BuildManifest) Add(e Entry) {
	i, _ := slices.BinarySearchFunc(m.Documents, e.Key, func(a Entry, key string) int { return strings.Compare(a.Key, key) })
	m.Documents = slices.Insert(m.Documents, i, e)
}

// Lookup returns the entry for key.
func (m *BuildManifest) Lookup(key string) (Entry, bool) {
	i, ok := slices.BinarySearchFunc(m.Documents, key, func(a Entry, key string) int { return strings.Compare(a.Key, key) })
	if !ok {
		return Entry{}, false
	}
	return m.Documents[i], true
}

// Changed returns the keys whose fingerprint differs from prev, plus keys
// missing from prev.
func (m *BuildManifest) Changed(prev *BuildManifest) []string {
	var out []string
	for _, e := range m.Documents {
		if prev == nil {
			out = append(out, e.Key)
			continue
		}
		if old, ok := prev.Lookup(e.Key); !ok || old.Fingerprint != e.Fingerprint {
			out = append(out, e.Key)
		}
	}
	return out
}

// ToJSON serializes the manifest to JSON.
func (m *BuildManifest) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*BuildManifest, error) {
	var m BuildManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Hash computes a deterministic hash of the configuration and document
// fingerprints, identifying builds with identical inputs.
func (m *BuildManifest) Hash() (string, error) {
	type doc struct {
		Key         string `json:"key"`
		Fingerprint string `json:"fingerprint"`
	}
	hashInput := struct {
		ConfigHash string `json:"config_hash"`
		Documents  []doc  `json:"documents"`
	}{ConfigHash: m.ConfigHash}
	for _, e := range m.Documents {
		hashInput.Documents = append(hashInput.Documents, doc{e.Key, e.Fingerprint})
	}

	data, err := json.Marshal(hashInput)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

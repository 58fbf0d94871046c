package gitfs

import (
	"encoding/json"
	"time"
)

// Metadata is persisted at /.git/meta.json in the overlay blob-store
// (spec §3 "GitMetadata").
type Metadata struct {
	CommitOid   string    `json:"commitOid"`
	RemoteOid   string    `json:"remoteOid"`
	Ref         string    `json:"ref"`
	URL         string    `json:"url"`
	CommitMtime time.Time `json:"commitMtime"`
	Deleted     []string  `json:"deleted"`
	Depth       int       `json:"depth"`
}

// HasUnpushedCommits reports whether the local commit has diverged
// from the last known server state.
func (m Metadata) HasUnpushedCommits() bool {
	return m.CommitOid != m.RemoteOid
}

func marshalMetadata(m Metadata) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

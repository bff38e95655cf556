package api

import (
	"slices"
)

// ArtifactKind names one per-message artifact; its value doubles as the file extension.
type ArtifactKind string

// Artifact kinds, in the order they are written.
const (
	ArtifactJSON ArtifactKind = "json"
	ArtifactHTML ArtifactKind = "html"
	ArtifactText ArtifactKind = "txt"
	ArtifactPDF  ArtifactKind = "pdf"
)

// AllArtifactKinds lists every supported kind.
var AllArtifactKinds = []ArtifactKind{ArtifactJSON, ArtifactHTML, ArtifactText, ArtifactPDF}

// ParseArtifactKind validates a kind name.
func ParseArtifactKind(s string) (ArtifactKind, bool) {
	k := ArtifactKind(s)
	return k, slices.Contains(AllArtifactKinds, k)
}

// KindSet is the set of artifact kinds to emit for one message.
type KindSet []ArtifactKind

// KindsFor intersects the configured kinds with what the message can produce.
// The plaintext kind is dropped when the message has no plaintext body.
func KindsFor(configured []ArtifactKind, hasText bool) KindSet {
	set := make(KindSet, 0, len(configured))
	for _, k := range AllArtifactKinds {
		if !slices.Contains(configured, k) {
			continue
		}
		if k == ArtifactText && !hasText {
			continue
		}
		set = append(set, k)
	}
	return set
}

// Files maps each kind in the set to "<base>.<ext>".
func (s KindSet) Files(base string) map[ArtifactKind]string {
	files := make(map[ArtifactKind]string, len(s))
	for _, k := range s {
		files[k] = base + "." + string(k)
	}
	return files
}

// SummaryEntry is the durable record of one successfully extracted message.
type SummaryEntry struct {
	MessageID    string                  `json:"messageId"`
	ImporterName string                  `json:"importerName"`
	Metadata     ExtractionResult        `json:"metadata"`
	Files        map[ArtifactKind]string `json:"files"`
	// Exclude is set by hand in the summary file to drop an entry from collation.
	Exclude bool `json:"exclude,omitempty"`
}

// File returns the recorded filename for kind.
func (e *SummaryEntry) File(kind ArtifactKind) (string, bool) {
	name, ok := e.Files[kind]
	return name, ok && name != ""
}

package domain

import "time"

// DocumentStatus records the outcome of text extraction for a file.
type DocumentStatus int

const (
	StatusOK DocumentStatus = iota
	StatusEmpty
	StatusFailed
)

func (s DocumentStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Document represents a single file loaded from the knowledge base.
type Document struct {
	Path   string
	Text   string
	Status DocumentStatus
}

// Segment is a bounded window of a document's text used for embedding and retrieval.
// Offset is measured in runes from the start of the document.
type Segment struct {
	Fingerprint string
	Source      string
	Offset      int
	Index       int
	Text        string
}

// Match is a stored segment returned by a similarity query.
// Distance is the cosine distance (1 - cosine similarity) to the query vector.
type Match struct {
	Segment  Segment
	Distance float64
}

// Skip describes a file excluded from ingestion and why.
type Skip struct {
	Path  string
	Kind  error
	Cause error
}

func (s Skip) Error() string {
	if s.Cause == nil {
		return s.Path + ": " + s.Kind.Error()
	}
	return s.Path + ": " + s.Kind.Error() + ": " + s.Cause.Error()
}

func (s Skip) Unwrap() []error {
	if s.Cause == nil {
		return []error{s.Kind}
	}
	return []error{s.Kind, s.Cause}
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
	At      time.Time
}

// Chunker splits documents into segments suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) []Segment
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Documents int
	Skipped   []Skip
	Segments  int
	Stored    int
}

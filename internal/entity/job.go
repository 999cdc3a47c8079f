package entity

// Chapter is one per-chapter audio file produced for a job.
type Chapter struct {
	Name string `json:"name"` // raw file name on disk
	URL  string `json:"url"`
}

// ExtractionResult is the response payload for one finished job. It is not
// persisted anywhere, job identity lives in the filesystem.
type ExtractionResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Chapters  []Chapter `json:"chapters"`
}

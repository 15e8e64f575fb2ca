package model

// SourceEntry is one subscription URL plus the optional label taken from the
// annotation line preceding it in the source list.
type SourceEntry struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// FetchOutcome records what happened to one SourceEntry. It is used only for
// reporting and never feeds back into node data.
type FetchOutcome struct {
	URL       string
	Label     string
	Success   bool
	NodeCount int
	Error     string // empty on success

	Attempts int    // fetch attempts, including the first one
	Format   string // classifier verdict, empty when the fetch failed
	Skipped  int    // lines or records that failed to decode
}

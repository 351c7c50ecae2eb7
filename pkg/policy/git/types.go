package git

import (
	"time"
)

// CommitInfo contains metadata about a Git commit.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// Short returns the abbreviated SHA.
func (c *CommitInfo) Short() string {
	return shortSHA(c.SHA)
}

// SyncResult contains the result of a sync.
type SyncResult struct {
	Cloned       bool
	FromSHA      string
	ToSHA        string
	ChangedFiles []string
}

// HadChanges reports whether the sync moved HEAD.
func (r *SyncResult) HadChanges() bool {
	return r.FromSHA != r.ToSHA
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

package metrics

// IndexStats captures the in-memory user index and session table size.
type IndexStats struct {
	Users        int `json:"users"`
	TreeHeight   int `json:"treeHeight"`
	LiveSessions int `json:"liveSessions"`
}

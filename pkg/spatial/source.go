package spatial

// TeamRecord describes one team of a recorded match.
type TeamRecord struct {
	Name         string `json:"name"`
	Score        int    `json:"score"`
	StartingSide string `json:"starting_side"`
}

// Source identifies a recording that contributed to a tracker.
type Source struct {
	Path    string     `json:"path"`
	MatchID string     `json:"match_id"`
	MapName string     `json:"map_name"`
	Rounds  int        `json:"rounds"`
	CT      TeamRecord `json:"ct"`
	T       TeamRecord `json:"t"`
}

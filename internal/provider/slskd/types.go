package slskd

import "strings"

// searchRequest is the body sent to start a search.
type searchRequest struct {
	ID                   string `json:"id"`
	SearchText           string `json:"searchText"`
	SearchTimeout        int    `json:"searchTimeout,omitempty"` // milliseconds
	ResponseLimit        int    `json:"responseLimit,omitempty"`
	FilterResponses      bool   `json:"filterResponses"`
	MinimumResponseFiles int    `json:"minimumResponseFileCount,omitempty"`
}

// Search represents a search as reported by slskd.
type Search struct {
	ID            string      `json:"id"`
	SearchText    string      `json:"searchText"`
	Token         int         `json:"token"`
	State         SearchState `json:"state"`
	IsComplete    bool        `json:"isComplete"`
	ResponseCount int         `json:"responseCount"`
	FileCount     int         `json:"fileCount"`
}

// SearchResponse represents a user's response to a search.
type SearchResponse struct {
	Username    string `json:"username"`
	FileCount   int    `json:"fileCount"`
	HasFreeSlot bool   `json:"hasFreeUploadSlot"`
	QueueLength int    `json:"queueLength"`
	UploadSpeed int    `json:"uploadSpeed"` // bytes per second
	Files       []File `json:"files"`
}

// File represents a file in search results.
type File struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Code      int    `json:"code"`
	Extension string `json:"extension"`
	BitRate   int    `json:"bitRate"`
	BitDepth  int    `json:"bitDepth"`
	Length    int    `json:"length"` // Duration in seconds
	IsLocked  bool   `json:"isLocked"`
}

// Application is the subset of /api/v0/application used for health checks.
type Application struct {
	Version struct {
		Full string `json:"full"`
	} `json:"version"`
	Server struct {
		State       string `json:"state"`
		IsConnected bool   `json:"isConnected"`
		IsLoggedIn  bool   `json:"isLoggedIn"`
	} `json:"server"`
}

// SearchState represents the state of a search.
type SearchState string

// Search states. slskd reports compound states such as
// "Completed, ResponseLimitReached".
const (
	SearchStateNone       SearchState = "None"
	SearchStateRequested  SearchState = "Requested"
	SearchStateInProgress SearchState = "InProgress"
	SearchStateCompleted  SearchState = "Completed"
	SearchStateTimedOut   SearchState = "TimedOut"
	SearchStateCancelled  SearchState = "Cancelled"
	SearchStateErrored    SearchState = "Errored"
)

// IsTerminal returns true if the search will not produce further responses.
func (s SearchState) IsTerminal() bool {
	state := string(s)
	return strings.Contains(state, string(SearchStateCompleted)) ||
		strings.Contains(state, string(SearchStateTimedOut)) ||
		strings.Contains(state, string(SearchStateCancelled)) ||
		strings.Contains(state, string(SearchStateErrored))
}

// Errored reports whether the search ended in an error state.
func (s SearchState) Errored() bool {
	return strings.Contains(string(s), string(SearchStateErrored))
}

package deezer

// apiError is the in-body error Deezer returns with HTTP 200.
type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// envelope is decoded first from every response to detect in-body errors.
type envelope struct {
	Error *apiError `json:"error,omitempty"`
}

// artistSearchResponse is the JSON response from the Deezer artist search endpoint.
type artistSearchResponse struct {
	Data  []artistResult `json:"data"`
	Total int            `json:"total"`
	Next  string         `json:"next,omitempty"`
}

// artistResult is a single artist entry from a Deezer search or artist endpoint.
type artistResult struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Link       string `json:"link"`
	Picture    string `json:"picture"`
	PictureBig string `json:"picture_big"`
	PictureXL  string `json:"picture_xl"`
	NbAlbum    int    `json:"nb_album"`
	NbFan      int    `json:"nb_fan"`
	Type       string `json:"type"`
}

// trackList wraps search, top-track and album track listings.
type trackList struct {
	Data  []trackResult `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next,omitempty"`
}

// trackResult is a Deezer track.
type trackResult struct {
	ID             int          `json:"id"`
	Title          string       `json:"title"`
	TitleShort     string       `json:"title_short"`
	TitleVersion   string       `json:"title_version"`
	Duration       int          `json:"duration"` // seconds
	Rank           int          `json:"rank"`
	ExplicitLyrics bool         `json:"explicit_lyrics"`
	ReleaseDate    string       `json:"release_date"`
	Artist         artistResult `json:"artist"`
	Album          albumRef     `json:"album"`
}

// albumRef is the abbreviated album embedded in a track.
type albumRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// albumList is the response from /artist/{id}/albums.
type albumList struct {
	Data  []albumResult `json:"data"`
	Total int           `json:"total"`
	Next  string        `json:"next,omitempty"`
}

// albumResult is a Deezer album. Tracks and Genres are only populated by
// the /album/{id} endpoint.
type albumResult struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	ReleaseDate string       `json:"release_date"`
	RecordType  string       `json:"record_type"`
	NbTracks    int          `json:"nb_tracks"`
	Fans        int          `json:"fans"`
	Label       string       `json:"label"`
	UPC         string       `json:"upc"`
	Explicit    bool         `json:"explicit_lyrics"`
	Artist      artistResult `json:"artist"`
	Genres      *genreList   `json:"genres,omitempty"`
	Tracks      *trackList   `json:"tracks,omitempty"`
}

type genreList struct {
	Data []struct {
		Name string `json:"name"`
	} `json:"data"`
}

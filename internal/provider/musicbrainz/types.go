package musicbrainz

// MusicBrainz API response types.

// SearchResponse is the top-level response from the artist search endpoint.
type SearchResponse struct {
	Created string     `json:"created"`
	Count   int        `json:"count"`
	Offset  int        `json:"offset"`
	Artists []MBArtist `json:"artists"`
}

// MBArtist represents a MusicBrainz artist entity.
type MBArtist struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SortName       string     `json:"sort-name"`
	Type           string     `json:"type"`
	Disambiguation string     `json:"disambiguation"`
	Country        string     `json:"country"`
	Score          int        `json:"score"`
	LifeSpan       MBLifeSpan `json:"life-span"`
	Aliases        []MBAlias  `json:"aliases"`
	Tags           []MBTag    `json:"tags"`
	Genres         []MBGenre  `json:"genres"`
}

// MBLifeSpan represents the begin/end dates of an artist.
type MBLifeSpan struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
	Ended bool   `json:"ended"`
}

// MBAlias represents an alternative name for an artist.
type MBAlias struct {
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
	Type     string `json:"type"`
	Locale   string `json:"locale"`
	Primary  bool   `json:"primary"`
}

// MBTag represents a user-submitted tag.
type MBTag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MBGenre represents a genre classification.
type MBGenre struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// MBArtistCredit is one entry of an artist-credit list.
type MBArtistCredit struct {
	Name       string   `json:"name"`
	JoinPhrase string   `json:"joinphrase"`
	Artist     MBArtist `json:"artist"`
}

// MBRecordingSearchResponse is the top-level response from the recording search endpoint.
type MBRecordingSearchResponse struct {
	Count      int           `json:"count"`
	Offset     int           `json:"offset"`
	Recordings []MBRecording `json:"recordings"`
}

// MBRecording represents a MusicBrainz recording.
type MBRecording struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Length           int              `json:"length"`
	Score            int              `json:"score"`
	Disambiguation   string           `json:"disambiguation"`
	FirstReleaseDate string           `json:"first-release-date"`
	ArtistCredit     []MBArtistCredit `json:"artist-credit"`
	Releases         []MBRelease      `json:"releases"`
}

// MBReleaseGroupSearchResponse is the top-level response from the release-group browse endpoint.
type MBReleaseGroupSearchResponse struct {
	ReleaseGroupCount  int              `json:"release-group-count"`
	ReleaseGroupOffset int              `json:"release-group-offset"`
	ReleaseGroups      []MBReleaseGroup `json:"release-groups"`
}

// MBReleaseGroup represents a MusicBrainz release group entity.
type MBReleaseGroup struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	PrimaryType      string   `json:"primary-type"`
	SecondaryTypes   []string `json:"secondary-types"`
	FirstReleaseDate string   `json:"first-release-date"`
	Disambiguation   string   `json:"disambiguation"`
}

// MBRelease represents a concrete release (a pressing of a release group).
type MBRelease struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Date           string           `json:"date"`
	Status         string           `json:"status"`
	Country        string           `json:"country"`
	Disambiguation string           `json:"disambiguation"`
	ArtistCredit   []MBArtistCredit `json:"artist-credit"`
	ReleaseGroup   *MBReleaseGroup  `json:"release-group,omitempty"`
	Media          []MBMedium       `json:"media"`
}

// MBMedium is one disc or side of a release.
type MBMedium struct {
	Position   int       `json:"position"`
	Format     string    `json:"format"`
	TrackCount int       `json:"track-count"`
	Tracks     []MBTrack `json:"tracks"`
}

// MBTrack is a track on a medium.
type MBTrack struct {
	ID        string       `json:"id"`
	Number    string       `json:"number"`
	Title     string       `json:"title"`
	Length    int          `json:"length"`
	Position  int          `json:"position"`
	Recording *MBRecording `json:"recording,omitempty"`
}

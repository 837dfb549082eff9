package lastfm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Last.fm API response types.

// apiError is the in-body error payload.
type apiError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// list decodes a Last.fm collection, which is an array when it holds several
// entries and a bare object when it holds exactly one.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*l = []T{item}
	return nil
}

// flexInt decodes integers Last.fm sends as numbers, numeric strings or null.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// TrackSearchResponse is the top-level response from track.search.
type TrackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track list[SearchTrack] `json:"track"`
		} `json:"trackmatches"`
		TotalResults string `json:"opensearch:totalResults"`
	} `json:"results"`
}

// SearchTrack is a single track.search result. Artist is a plain name here.
type SearchTrack struct {
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	URL       string `json:"url"`
	Listeners string `json:"listeners"`
	MBID      string `json:"mbid"`
}

// ArtistSearchResponse is the top-level response from artist.search.
type ArtistSearchResponse struct {
	Results struct {
		ArtistMatches struct {
			Artist list[ArtistRef] `json:"artist"`
		} `json:"artistmatches"`
	} `json:"results"`
}

// InfoResponse is the top-level response from artist.getinfo.
type InfoResponse struct {
	Artist ArtistInfo `json:"artist"`
}

// ArtistInfo is the full artist info from artist.getinfo.
type ArtistInfo struct {
	Name    string       `json:"name"`
	MBID    string       `json:"mbid"`
	URL     string       `json:"url"`
	Stats   ArtistStats  `json:"stats"`
	Bio     ArtistBio    `json:"bio"`
	Tags    ArtistTags   `json:"tags"`
	Similar SimilarGroup `json:"similar"`
}

// ArtistStats holds listener/playcount.
type ArtistStats struct {
	Listeners string `json:"listeners"`
	Playcount string `json:"playcount"`
}

// ArtistBio holds the biography.
type ArtistBio struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// ArtistTags wraps the tag array.
type ArtistTags struct {
	Tag list[Tag] `json:"tag"`
}

// Tag is a single tag.
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SimilarGroup wraps the similar artists array.
type SimilarGroup struct {
	Artist list[ArtistRef] `json:"artist"`
}

// ArtistRef is an abbreviated artist embedded in other payloads.
type ArtistRef struct {
	Name      string `json:"name"`
	MBID      string `json:"mbid"`
	URL       string `json:"url"`
	Listeners string `json:"listeners"`
}

// TopAlbumsResponse is the top-level response from artist.gettopalbums.
type TopAlbumsResponse struct {
	TopAlbums struct {
		Album list[TopAlbum] `json:"album"`
	} `json:"topalbums"`
}

// TopAlbum is one entry of artist.gettopalbums.
type TopAlbum struct {
	Name      string    `json:"name"`
	MBID      string    `json:"mbid"`
	URL       string    `json:"url"`
	Playcount flexInt   `json:"playcount"`
	Artist    ArtistRef `json:"artist"`
}

// AlbumInfoResponse is the top-level response from album.getinfo.
type AlbumInfoResponse struct {
	Album AlbumInfo `json:"album"`
}

// AlbumInfo is the full album info from album.getinfo.
type AlbumInfo struct {
	Name   string     `json:"name"`
	Artist string     `json:"artist"`
	MBID   string     `json:"mbid"`
	URL    string     `json:"url"`
	Tags   ArtistTags `json:"tags"`
	Tracks struct {
		Track list[AlbumTrack] `json:"track"`
	} `json:"tracks"`
	Wiki struct {
		Published string `json:"published"`
	} `json:"wiki"`
}

// AlbumTrack is a track within album.getinfo.
type AlbumTrack struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Duration flexInt   `json:"duration"` // seconds
	Artist   ArtistRef `json:"artist"`
	Attr     struct {
		Rank flexInt `json:"rank"`
	} `json:"@attr"`
}

// TopTracksResponse is the top-level response from artist.gettoptracks.
type TopTracksResponse struct {
	TopTracks struct {
		Track list[TopTrack] `json:"track"`
	} `json:"toptracks"`
}

// TopTrack is one entry of artist.gettoptracks.
type TopTrack struct {
	Name      string    `json:"name"`
	MBID      string    `json:"mbid"`
	URL       string    `json:"url"`
	Playcount string    `json:"playcount"`
	Listeners string    `json:"listeners"`
	Artist    ArtistRef `json:"artist"`
}

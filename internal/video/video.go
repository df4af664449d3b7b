// Package video keeps the user's favorite video and works out how to play it.
package video

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maloquacious/backdrop/internal/acquire"
	"github.com/maloquacious/backdrop/internal/store"
)

// Key is the storage key for the favorite video URL.
const Key = "video_url"

var ErrUnsupportedURL = errors.New("video: unsupported url")

// Kind says how a video is played.
type Kind int

const (
	Local Kind = iota
	Remote
	YouTube
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Remote:
		return "remote"
	case YouTube:
		return "youtube"
	}
	return "unknown"
}

// Source is a classified video reference.
type Source struct {
	Kind Kind
	// URL is the reference as entered.
	URL string
	// PlayURL is what the player loads: the embed URL for YouTube, the
	// reference itself otherwise.
	PlayURL string
	// VideoID is set for YouTube sources.
	VideoID string
}

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Classify works out how to play raw.
func Classify(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}
	if filepath.IsAbs(raw) {
		return Source{Kind: Local, URL: raw, PlayURL: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return Source{Kind: Local, URL: raw, PlayURL: raw}, nil
	case "http", "https":
	default:
		return Source{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	if u.Host == "" {
		return Source{}, fmt.Errorf("%w: %q has no host", ErrUnsupportedURL, raw)
	}

	if id, ok := youtubeVideoID(u); ok {
		return Source{
			Kind:    YouTube,
			URL:     raw,
			PlayURL: "https://www.youtube.com/embed/" + id,
			VideoID: id,
		}, nil
	}
	return Source{Kind: Remote, URL: raw, PlayURL: raw}, nil
}

func youtubeVideoID(u *url.URL) (string, bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com":
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case parts[0] == "watch":
			id = u.Query().Get("v")
		case len(parts) == 2 && (parts[0] == "embed" || parts[0] == "shorts" || parts[0] == "live" || parts[0] == "v"):
			id = parts[1]
		}
	default:
		return "", false
	}
	return id, youtubeID.MatchString(id)
}

// Favorites persists the favorite video URL. Local videos must live under
// one of the media roots.
type Favorites struct {
	kv    store.KeyValue
	roots []string
}

func NewFavorites(kv store.KeyValue, roots ...string) *Favorites {
	return &Favorites{kv: kv, roots: roots}
}

// LocalFile resolves a saved local reference to a file under the media
// roots.
func (f *Favorites) LocalFile(ref string) (string, bool) {
	return acquire.Within(ref, f.roots...)
}

// Load returns the saved URL, or "" when none is saved.
func (f *Favorites) Load(ctx context.Context) (string, error) {
	v, _, err := f.kv.Get(ctx, Key)
	if err != nil {
		return "", fmt.Errorf("load favorite video: %w", err)
	}
	return v, nil
}

// Save stores raw after checking it can be played. Empty input is ignored.
func (f *Favorites) Save(ctx context.Context, raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, nil
	}
	src, err := Classify(raw)
	if err != nil {
		return Source{}, err
	}
	if src.Kind == Local {
		if _, ok := f.LocalFile(src.URL); !ok {
			return Source{}, fmt.Errorf("%w: %q is not in the media directory", ErrUnsupportedURL, raw)
		}
	}
	if err := f.kv.Set(ctx, Key, raw); err != nil {
		return Source{}, fmt.Errorf("save favorite video: %w", err)
	}
	return src, nil
}

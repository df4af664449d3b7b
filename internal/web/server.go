// Package web serves the tabbed HTML application and the loopback JSON
// admin API.
package web

import (
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/maloquacious/backdrop/internal/about"
	"github.com/maloquacious/backdrop/internal/acquire"
	"github.com/maloquacious/backdrop/internal/background"
	"github.com/maloquacious/backdrop/internal/contacts"
	"github.com/maloquacious/backdrop/internal/logger"
	"github.com/maloquacious/backdrop/internal/messages"
	"github.com/maloquacious/backdrop/internal/permission"
	"github.com/maloquacious/backdrop/internal/video"
)

// Deps are the collaborators the pages are built from.
type Deps struct {
	Background  *background.Store
	Alerts      messages.Alerter
	History     *messages.History
	Permissions permission.Requester
	Contacts    contacts.Directory
	Videos      *video.Favorites
	Team        about.Team

	// MediaDir and InboxDir are the only directories local files are
	// served from.
	MediaDir       string
	InboxDir       string
	MaxUploadBytes int64
	PublicDir      string
	Log            logger.Logger
}

// Server renders the public pages.
type Server struct {
	Deps
	events *broker
	unsub  func()
}

// New wires a Server and subscribes it to background changes. Call Close to
// unsubscribe.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = logger.Default
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	s := &Server{Deps: d, events: newBroker()}
	s.unsub = d.Background.Subscribe(s.events.publish)
	return s
}

// Close stops listening for background changes and ends open event streams.
func (s *Server) Close() {
	s.unsub()
	s.events.close()
}

// PublicHandler routes the HTML application.
func (s *Server) PublicHandler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", http.RedirectHandler("/background", http.StatusFound))

	r.HandleFunc("/background", s.handleBackground).Methods(http.MethodGet)
	r.HandleFunc("/background/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/background/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/background/image", s.handleImage).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/contacts", s.handleContacts).Methods(http.MethodGet)

	r.HandleFunc("/video", s.handleVideo).Methods(http.MethodGet)
	r.HandleFunc("/video", s.handleVideoSave).Methods(http.MethodPost)
	r.HandleFunc("/video/file", s.handleVideoFile).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/messages", s.handleMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/clear", s.handleMessagesClear).Methods(http.MethodPost)

	r.HandleFunc("/about", s.handleAbout).Methods(http.MethodGet)
	r.HandleFunc("/about/qr.png", s.handleAboutQR).Methods(http.MethodGet)

	r.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	r.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.Background.Initialized() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("STARTING"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	if s.PublicDir != "" {
		r.PathPrefix("/public/").Handler(http.StripPrefix("/public/", http.FileServer(http.Dir(s.PublicDir))))
	}
	return r
}

// mediaRoots lists the directories local references may point into.
func (s *Server) mediaRoots() []string {
	return []string{s.MediaDir, s.InboxDir}
}

// imageSource turns a background reference into something the browser can
// load. Local files under the media roots are served through
// /background/image; anything else local yields no image.
func (s *Server) imageSource(ref string) (string, bool) {
	if _, ok := acquire.LocalPath(ref); ok {
		path, ok := acquire.Within(ref, s.mediaRoots()...)
		if !ok {
			return "", false
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return "", false
		}
		return "/background/image?v=" + strconv.FormatInt(info.ModTime().UnixNano(), 36), true
	}
	if isRemote(ref) {
		return ref, true
	}
	return "", false
}

// backgroundToken identifies the current background without revealing the
// reference. Unset is the empty token.
func backgroundToken(snap background.Snapshot) string {
	if !snap.IsSet() {
		return ""
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(snap.ImageURI)).String()
}

func isRemote(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c).ServeHTTP(w, r)
}

func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/maloquacious/backdrop/internal/acquire"
	"github.com/maloquacious/backdrop/internal/permission"
	"github.com/maloquacious/backdrop/internal/video"
)

const (
	titleError  = "Error"
	titleDenied = "Permission denied"
)

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	snap := s.Background.Get()
	preview, ok := "", false
	if snap.IsSet() {
		preview, ok = s.imageSource(snap.ImageURI)
	}
	s.render(w, r, s.page("Background", "/background", backgroundBody(snap, preview, ok)))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+1<<20)

	class, failure := permission.PhotoLibrary, "Could not select the image"
	if r.FormValue("source") == "camera" {
		class, failure = permission.Camera, "Could not take the photo"
	}
	if s.Permissions.Request(ctx, class) != permission.Granted {
		s.Alerts.Show(ctx, titleDenied, "We need permission to use the "+describe(class))
		seeOther(w, r, "/background")
		return
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		seeOther(w, r, "/background")
		return
	}
	if err != nil {
		s.Log.Warn("web: read upload: %v", err)
		s.Alerts.Show(ctx, titleError, failure)
		seeOther(w, r, "/background")
		return
	}
	defer file.Close()

	res, err := acquire.SaveUpload(s.MediaDir, header.Filename, file, s.MaxUploadBytes)
	if err != nil {
		s.Log.Warn("web: save upload: %v", err)
		s.Alerts.Show(ctx, titleError, failure)
		seeOther(w, r, "/background")
		return
	}
	if res.Canceled {
		seeOther(w, r, "/background")
		return
	}

	if err := s.Background.Set(ctx, res.URI).Wait(ctx); err != nil {
		s.Alerts.Show(ctx, titleError, "Could not save the image")
	}
	seeOther(w, r, "/background")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Background.Set(ctx, "").Wait(ctx); err != nil {
		s.Alerts.Show(ctx, titleError, "Could not remove the background")
	}
	seeOther(w, r, "/background")
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	snap := s.Background.Get()
	if !snap.IsSet() {
		http.NotFound(w, r)
		return
	}
	if isRemote(snap.ImageURI) {
		http.Redirect(w, r, snap.ImageURI, http.StatusFound)
		return
	}
	path, ok := acquire.Within(snap.ImageURI, s.mediaRoots()...)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.Permissions.Request(ctx, permission.Contacts) != permission.Granted {
		s.Alerts.Show(ctx, titleDenied, "We need permission to access your contacts")
		s.render(w, r, s.page("Contacts", "/contacts", contactsBody(nil, "Access to contacts was not granted.")))
		return
	}

	list, err := s.Contacts.List(ctx)
	if err != nil {
		s.Log.Warn("web: list contacts: %v", err)
		s.Alerts.Show(ctx, titleError, "Could not load your contacts")
	}
	s.render(w, r, s.page("Contacts", "/contacts", contactsBody(list, "")))
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	saved, err := s.Videos.Load(ctx)
	if err != nil {
		s.Log.Warn("web: %v", err)
		s.Alerts.Show(ctx, titleError, "Could not load the saved URL")
	}

	var src video.Source
	playable := false
	if saved != "" {
		if src, err = video.Classify(saved); err == nil {
			playable = true
			if src.Kind == video.Local {
				_, playable = s.Videos.LocalFile(saved)
			}
		}
	}
	s.render(w, r, s.page("Favorite video", "/video", videoBody(saved, src, playable)))
}

func (s *Server) handleVideoSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, err := s.Videos.Save(ctx, r.FormValue("url"))
	switch {
	case errors.Is(err, video.ErrUnsupportedURL):
		s.Alerts.Show(ctx, titleError, "That video URL cannot be played")
	case err != nil:
		s.Log.Warn("web: %v", err)
		s.Alerts.Show(ctx, titleError, "Could not save the URL")
	}
	seeOther(w, r, "/video")
}

func (s *Server) handleVideoFile(w http.ResponseWriter, r *http.Request) {
	saved, err := s.Videos.Load(r.Context())
	if err != nil || saved == "" {
		http.NotFound(w, r)
		return
	}
	path, ok := s.Videos.LocalFile(saved)
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	list := s.History.List(r.Context())
	s.render(w, r, s.page("Message history", "/messages", messagesBody(list, time.Now())))
}

func (s *Server) handleMessagesClear(w http.ResponseWriter, r *http.Request) {
	if err := s.History.Clear(r.Context()); err != nil {
		s.Log.Warn("web: %v", err)
	}
	seeOther(w, r, "/messages")
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, s.page("About", "/about", aboutBody(s.Team.Name, s.Team.Members)))
}

func (s *Server) handleAboutQR(w http.ResponseWriter, r *http.Request) {
	png, err := s.Team.QRCode(256)
	if err != nil {
		s.Log.Error("web: %v", err)
		http.Error(w, "qr code unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

func describe(c permission.Class) string {
	switch c {
	case permission.Camera:
		return "camera"
	case permission.PhotoLibrary:
		return "photo library"
	case permission.Contacts:
		return "contacts"
	}
	return string(c)
}

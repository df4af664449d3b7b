package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/backdrop/internal/about"
	"github.com/maloquacious/backdrop/internal/acquire"
	"github.com/maloquacious/backdrop/internal/background"
	"github.com/maloquacious/backdrop/internal/contacts"
	"github.com/maloquacious/backdrop/internal/logger"
	"github.com/maloquacious/backdrop/internal/messages"
	"github.com/maloquacious/backdrop/internal/permission"
	"github.com/maloquacious/backdrop/internal/store/memory"
	"github.com/maloquacious/backdrop/internal/video"
)

type harness struct {
	server    *Server
	handler   http.Handler
	bgKV      *memory.Store
	appKV     *memory.Store
	history   *messages.History
	mediaDir  string
	inboxDir  string
	contactsF string
}

func newHarness(t *testing.T, grants ...string) *harness {
	t.Helper()
	if grants == nil {
		grants = []string{"camera", "photo_library", "contacts"}
	}
	dir := t.TempDir()
	log := logger.NewNop()

	bgKV, appKV := memory.New(), memory.New()
	bg := background.New(bgKV, background.WithLogger(log))
	bg.Initialize(context.Background())

	history := messages.NewHistory(appKV, 10, log)
	gate, err := permission.NewGate(grants)
	require.NoError(t, err)

	h := &harness{
		bgKV:      bgKV,
		appKV:     appKV,
		history:   history,
		mediaDir:  filepath.Join(dir, "media"),
		inboxDir:  filepath.Join(dir, "inbox"),
		contactsF: filepath.Join(dir, "contacts.yaml"),
	}
	h.server = New(Deps{
		Background:     bg,
		Alerts:         messages.NewNotifier(history, log),
		History:        history,
		Permissions:    gate,
		Contacts:       contacts.NewFileDirectory(h.contactsF),
		Videos:         video.NewFavorites(appKV, filepath.Join(dir, "media"), filepath.Join(dir, "inbox")),
		Team:           about.Team{Name: "Equipo 1", Members: []string{"Juan Pérez"}},
		MediaDir:       h.mediaDir,
		InboxDir:       h.inboxDir,
		MaxUploadBytes: 1 << 20,
		Log:            log,
	})
	h.handler = h.server.PublicHandler()
	t.Cleanup(func() {
		h.server.Close()
		_ = bg.Close(context.Background())
	})
	return h
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(t *testing.T, path string) *httptest.ResponseRecorder {
	return h.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func (h *harness) upload(t *testing.T, source, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("source", source))
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/background/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(t, req)
}

func (h *harness) titles() []string {
	var out []string
	for _, m := range h.history.List(context.Background()) {
		out = append(out, m.Title+": "+m.Body)
	}
	return out
}

func TestRootRedirectsToBackground(t *testing.T) {
	h := newHarness(t)
	rec := h.get(t, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/background", rec.Header().Get("Location"))
}

func TestEveryTabRendersInsideWrapper(t *testing.T) {
	h := newHarness(t)
	for _, tb := range tabs {
		t.Run(tb.Label, func(t *testing.T) {
			rec := h.get(t, tb.Path)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, `<div class="backdrop" data-background="unset"`)
			assert.Contains(t, body, `aria-current="page"`)
			for _, other := range tabs {
				assert.Contains(t, body, `href="`+other.Path+`"`)
			}
		})
	}
}

func TestUploadSetsBackground(t *testing.T) {
	h := newHarness(t)

	rec := h.upload(t, "library", "beach.png", []byte("png bytes"))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	snap := h.server.Background.Get()
	require.True(t, snap.IsSet())
	path, ok := acquire.LocalPath(snap.ImageURI)
	require.True(t, ok)
	assert.Equal(t, h.mediaDir, filepath.Dir(path))

	stored, found, _ := h.bgKV.Get(context.Background(), background.Key)
	assert.True(t, found)
	assert.Equal(t, snap.ImageURI, stored)

	page := h.get(t, "/background").Body.String()
	assert.Contains(t, page, `data-background="set"`)
	assert.Contains(t, page, "/background/image?v=")

	img := h.get(t, "/background/image")
	require.Equal(t, http.StatusOK, img.Code)
	assert.Equal(t, "png bytes", img.Body.String())
}

func TestUploadWithoutFileIsCancellation(t *testing.T) {
	h := newHarness(t)
	rec := h.upload(t, "camera", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, h.server.Background.Get().IsSet())
	assert.Empty(t, h.titles())
}

func TestUploadDeniedPermission(t *testing.T) {
	h := newHarness(t, "contacts")

	rec := h.upload(t, "camera", "selfie.jpg", []byte("jpg"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, h.server.Background.Get().IsSet())
	assert.Equal(t, []string{"Permission denied: We need permission to use the camera"}, h.titles())
}

func TestUploadRejectsNonImage(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "library", "notes.txt", []byte("hello"))
	assert.False(t, h.server.Background.Get().IsSet())
	assert.Equal(t, []string{"Error: Could not select the image"}, h.titles())
}

func TestUploadPersistFailureKeepsNewBackground(t *testing.T) {
	h := newHarness(t)
	h.bgKV.FailSet(assert.AnError)

	h.upload(t, "library", "beach.png", []byte("png"))

	assert.True(t, h.server.Background.Get().IsSet(), "in-memory value is kept")
	assert.Equal(t, []string{"Error: Could not save the image"}, h.titles())
}

func TestClearBackground(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "library", "beach.png", []byte("png"))
	require.True(t, h.server.Background.Get().IsSet())

	rec := h.postForm(t, "/background/clear", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, h.server.Background.Get().IsSet())
	_, found, _ := h.bgKV.Get(context.Background(), background.Key)
	assert.False(t, found)
	assert.Equal(t, http.StatusNotFound, h.get(t, "/background/image").Code)
}

func TestMissingImageFallsBackToBareWrapper(t *testing.T) {
	h := newHarness(t)
	gone := filepath.Join(t.TempDir(), "deleted.jpg")
	uri, err := acquire.FileURI(gone)
	require.NoError(t, err)
	require.NoError(t, h.server.Background.Set(context.Background(), uri).Wait(context.Background()))

	body := h.get(t, "/background").Body.String()
	assert.Contains(t, body, `<div class="backdrop" data-background="unset"`)
	assert.Contains(t, body, "The saved image is not available.")
}

func TestInboxImageIsServed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.inboxDir, 0o755))
	pic := filepath.Join(h.inboxDir, "dropped.png")
	require.NoError(t, os.WriteFile(pic, []byte("dropped"), 0o644))
	uri, err := acquire.FileURI(pic)
	require.NoError(t, err)
	require.NoError(t, h.server.Background.Set(context.Background(), uri).Wait(context.Background()))

	body := h.get(t, "/background").Body.String()
	assert.Contains(t, body, `<div class="backdrop" data-background="set"`)
	assert.NotContains(t, body, pic)
	assert.NotContains(t, body, uri)

	rec := h.get(t, "/background/image")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dropped", rec.Body.String())
}

func TestImageOutsideMediaIsNotServed(t *testing.T) {
	h := newHarness(t)
	secret := filepath.Join(t.TempDir(), "secret.png")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o644))

	for _, ref := range []string{secret, "file://" + filepath.ToSlash(secret)} {
		t.Run(ref, func(t *testing.T) {
			require.NoError(t, h.server.Background.Set(context.Background(), ref).Wait(context.Background()))

			body := h.get(t, "/background").Body.String()
			assert.Contains(t, body, `<div class="backdrop" data-background="unset"`)
			assert.Contains(t, body, "The saved image is not available.")
			assert.NotContains(t, body, secret)

			rec := h.get(t, "/background/image")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.NotContains(t, rec.Body.String(), "TOP-SECRET")
		})
	}
}

func TestPageCarriesBackgroundToken(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.get(t, "/about").Body.String(), `<body data-background="">`)

	ref := "file:///home/someone/private/beach.png"
	require.NoError(t, h.server.Background.Set(context.Background(), ref).Wait(context.Background()))

	body := h.get(t, "/about").Body.String()
	token := backgroundToken(h.server.Background.Get())
	assert.Len(t, token, 36)
	assert.Contains(t, body, `<body data-background="`+token+`">`)
	assert.NotContains(t, body, "/home/someone")
}

func TestRemoteImageIsUsedDirectly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.server.Background.Set(context.Background(), "https://example.com/a.jpg").Wait(context.Background()))

	body := h.get(t, "/messages").Body.String()
	assert.Contains(t, body, `data-background="set"`)
	assert.Contains(t, body, "https://example.com/a.jpg")

	rec := h.get(t, "/background/image")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestContacts(t *testing.T) {
	h := newHarness(t)
	data := "contacts:\n  - id: \"1\"\n    name: Ada\n    phones:\n      - {id: m, number: \"+34 600\", primary: true}\n"
	require.NoError(t, os.WriteFile(h.contactsF, []byte(data), 0o644))

	body := h.get(t, "/contacts").Body.String()
	assert.Contains(t, body, "Ada")
	assert.Contains(t, body, "+34 600")
	assert.Contains(t, body, `class="primary"`)
}

func TestPagesEscapeStoredText(t *testing.T) {
	h := newHarness(t)
	data := "contacts:\n  - id: '1\"><b>'\n    name: \"<img src=x onerror=alert(1)>\"\n"
	require.NoError(t, os.WriteFile(h.contactsF, []byte(data), 0o644))
	h.server.Team = about.Team{Name: "<script>team</script>", Members: []string{"a&b"}}

	contactsPage := h.get(t, "/contacts").Body.String()
	assert.NotContains(t, contactsPage, "<img src=x")
	assert.Contains(t, contactsPage, "&lt;img src=x onerror=alert(1)&gt;")
	assert.Contains(t, contactsPage, `id="contact-1&#34;&gt;&lt;b&gt;"`)

	aboutPage := h.get(t, "/about").Body.String()
	assert.NotContains(t, aboutPage, "<script>team")
	assert.Contains(t, aboutPage, "&lt;script&gt;team&lt;/script&gt;")
	assert.Contains(t, aboutPage, "a&amp;b")
}

func TestContactsDenied(t *testing.T) {
	h := newHarness(t, "camera")
	rec := h.get(t, "/contacts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access to contacts was not granted.")
	assert.Equal(t, []string{"Permission denied: We need permission to access your contacts"}, h.titles())
}

func TestVideo(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.get(t, "/video").Body.String(), "Enter a video URL to play it.")

	rec := h.postForm(t, "/video", url.Values{"url": {"https://youtu.be/dQw4w9WgXcQ"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	body := h.get(t, "/video").Body.String()
	assert.Contains(t, body, `<iframe`)
	assert.Contains(t, body, "https://www.youtube.com/embed/dQw4w9WgXcQ")

	h.postForm(t, "/video", url.Values{"url": {"gopher://old"}})
	assert.Equal(t, []string{"Error: That video URL cannot be played"}, h.titles())
}

func TestVideoLocalFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.mediaDir, 0o755))
	clip := filepath.Join(h.mediaDir, "clip.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("mp4"), 0o644))
	h.postForm(t, "/video", url.Values{"url": {clip}})

	assert.Contains(t, h.get(t, "/video").Body.String(), `src="/video/file"`)
	rec := h.get(t, "/video/file")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp4", rec.Body.String())
}

func TestVideoOutsideMediaIsRejected(t *testing.T) {
	h := newHarness(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o644))

	for _, ref := range []string{secret, "/etc/passwd"} {
		rec := h.postForm(t, "/video", url.Values{"url": {ref}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
	}
	assert.Equal(t, []string{
		"Error: That video URL cannot be played",
		"Error: That video URL cannot be played",
	}, h.titles())
	_, found, _ := h.appKV.Get(context.Background(), video.Key)
	assert.False(t, found)

	rec := h.get(t, "/video/file")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "TOP-SECRET")
}

func TestVideoStoredOutsideMediaIsNotServed(t *testing.T) {
	h := newHarness(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o644))
	require.NoError(t, h.appKV.Set(context.Background(), video.Key, secret))

	assert.NotContains(t, h.get(t, "/video").Body.String(), `src="/video/file"`)
	rec := h.get(t, "/video/file")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "TOP-SECRET")
}

func TestVideoLoadFailureAlerts(t *testing.T) {
	h := newHarness(t)
	h.appKV.FailGet(assert.AnError)
	rec := h.get(t, "/video")
	assert.Equal(t, http.StatusOK, rec.Code)
	h.appKV.FailGet(nil)
	assert.Equal(t, []string{"Error: Could not load the saved URL"}, h.titles())
}

func TestMessages(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.get(t, "/messages").Body.String(), "No messages to show.")

	_, err := h.history.Add(context.Background(), "Error", "<b>disk</b> full")
	require.NoError(t, err)

	body := h.get(t, "/messages").Body.String()
	assert.Contains(t, body, "&lt;b&gt;disk&lt;/b&gt; full")
	assert.Contains(t, body, `<time class="muted" datetime="`)

	h.postForm(t, "/messages/clear", nil)
	assert.Empty(t, h.history.List(context.Background()))
}

func TestAbout(t *testing.T) {
	h := newHarness(t)
	body := h.get(t, "/about").Body.String()
	assert.Contains(t, body, "Equipo 1")
	assert.Contains(t, body, "Juan Pérez")

	rec := h.get(t, "/about/qr.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestReadiness(t *testing.T) {
	bg := background.New(memory.New(), background.WithLogger(logger.NewNop()))
	s := New(Deps{Background: bg, Log: logger.NewNop()})
	defer s.Close()
	handler := s.PublicHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	bg.Initialize(context.Background())
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsStreamBackgroundChanges(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	first := readEvent(t, resp.Body)
	assert.Equal(t, "{}", first)

	h.server.Background.Set(context.Background(), "file:///home/someone/beach.png")
	second := readEvent(t, resp.Body)
	assert.Equal(t, `{"token":"`+backgroundToken(h.server.Background.Get())+`"}`, second)
	assert.NotContains(t, second, "someone")
}

// readEvent returns the data line of the next server-sent event.
func readEvent(t *testing.T, r io.Reader) string {
	t.Helper()
	var data string
	buf := make([]byte, 1)
	var line strings.Builder
	for {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if buf[0] != '\n' {
			line.WriteByte(buf[0])
			continue
		}
		text := line.String()
		line.Reset()
		if text == "" {
			return data
		}
		if strings.HasPrefix(text, "data: ") {
			data = strings.TrimPrefix(text, "data: ")
		}
	}
}

func TestBrokerKeepsOnlyLatestPending(t *testing.T) {
	b := newBroker()
	ch := b.subscribe()
	b.publish(background.Snapshot{ImageURI: "a"})
	b.publish(background.Snapshot{ImageURI: "b"})

	assert.Equal(t, "b", (<-ch).ImageURI)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected pending snapshot %q", snap.ImageURI)
	default:
	}
	b.unsubscribe(ch)
	b.publish(background.Snapshot{ImageURI: "c"})
	assert.Empty(t, ch)
}

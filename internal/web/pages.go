package web

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/maloquacious/backdrop/internal/background"
	"github.com/maloquacious/backdrop/internal/contacts"
	"github.com/maloquacious/backdrop/internal/messages"
	"github.com/maloquacious/backdrop/internal/video"
)

type tab struct {
	Path  string
	Label string
}

var tabs = []tab{
	{Path: "/background", Label: "Background"},
	{Path: "/contacts", Label: "Contacts"},
	{Path: "/video", Label: "Video"},
	{Path: "/messages", Label: "Messages"},
	{Path: "/about", Label: "About"},
}

const pageStyle = `body{margin:0;font-family:system-ui,sans-serif}
.tab{padding:1rem 1rem 5rem}
.tab h1{background:rgba(255,255,255,.85);padding:.5rem 1rem;border-radius:8px}
.card{background:rgba(255,255,255,.9);padding:1rem;margin:.5rem 0;border-radius:8px}
.tabs{position:fixed;bottom:0;left:0;right:0;display:flex;background:#fff;border-top:1px solid #ddd}
.tabs a{flex:1;text-align:center;padding:.75rem;text-decoration:none;color:#555}
.tabs a[aria-current=page]{color:#007aff;font-weight:bold}
.preview{width:100%;max-height:240px;object-fit:cover;border-radius:8px}
.muted{color:#666;font-style:italic}`

const eventsScript = `<script>new EventSource("/events").addEventListener("background",function(e){var d=JSON.parse(e.data);if((d.token||"")!==document.body.dataset.background){location.reload()}})</script>`

// html accumulates the first write error so components read top to bottom.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) attr(name, value string) {
	h.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (h *html) component(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

// page renders a full document: the tab body and the tab bar, all inside
// the background wrapper.
func (s *Server) page(title, active string, body templ.Component) templ.Component {
	snap := s.Background.Get()
	inner := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<main class="tab"><h1>`)
		h.text(title)
		h.raw(`</h1>`)
		h.component(ctx, body)
		h.raw(`</main><nav class="tabs">`)
		for _, t := range tabs {
			h.raw(`<a`)
			h.attr("href", t.Path)
			if t.Path == active {
				h.attr("aria-current", "page")
			}
			h.raw(`>`)
			h.text(t.Label)
			h.raw(`</a>`)
		}
		h.raw(`</nav>`)
		return h.err
	})

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1"><title>`)
		h.text(title + " | backdrop")
		h.raw(`</title><style>` + pageStyle + `</style></head><body`)
		h.attr("data-background", backgroundToken(snap))
		h.raw(`>`)
		h.component(ctx, background.Wrapper(snap, s.imageSource, inner))
		h.raw(eventsScript + `</body></html>`)
		return h.err
	})
}

func backgroundBody(snap background.Snapshot, preview string, hasPreview bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="card">`)
		if hasPreview {
			h.raw(`<img class="preview" alt="Current background"`)
			h.attr("src", preview)
			h.raw(`>`)
		} else if snap.IsSet() {
			h.raw(`<p class="muted">The saved image is not available.</p>`)
		} else {
			h.raw(`<p class="muted">No background set.</p>`)
		}
		h.raw(`</section>`)
		h.raw(`<form class="card" method="post" action="/background/upload" enctype="multipart/form-data">`)
		h.raw(`<input type="hidden" name="source" value="camera">`)
		h.raw(`<input type="file" name="image" accept="image/*" capture="environment">`)
		h.raw(`<button type="submit">Take photo</button></form>`)
		h.raw(`<form class="card" method="post" action="/background/upload" enctype="multipart/form-data">`)
		h.raw(`<input type="hidden" name="source" value="library">`)
		h.raw(`<input type="file" name="image" accept="image/*">`)
		h.raw(`<button type="submit">Choose from gallery</button></form>`)
		if snap.IsSet() {
			h.raw(`<form class="card" method="post" action="/background/clear"><button type="submit">Remove background</button></form>`)
		}
		return h.err
	})
}

func contactsBody(list []contacts.Contact, notice string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		if notice != "" {
			h.raw(`<p class="card muted">`)
			h.text(notice)
			h.raw(`</p>`)
			return h.err
		}
		if len(list) == 0 {
			h.raw(`<p class="card muted">No contacts.</p>`)
			return h.err
		}
		h.raw(`<ul class="contacts">`)
		for _, c := range list {
			h.raw(`<li class="card"`)
			h.attr("id", "contact-"+c.ID)
			h.raw(`><strong>`)
			h.text(c.Name)
			h.raw(`</strong>`)
			for _, p := range c.Phones {
				h.raw(`<div class="phone">`)
				h.text(p.Number)
				if p.Primary {
					h.raw(` <span class="primary" title="Primary">&#9733;</span>`)
				}
				h.raw(`</div>`)
			}
			h.raw(`</li>`)
		}
		h.raw(`</ul>`)
		return h.err
	})
}

func videoBody(saved string, src video.Source, playable bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<form class="card" method="post" action="/video"><input type="url" name="url" placeholder="Enter the video URL" autocapitalize="none"`)
		h.attr("value", saved)
		h.raw(`><button type="submit">Save</button></form>`)

		switch {
		case !playable:
			h.raw(`<p class="card muted">Enter a video URL to play it.</p>`)
		case src.Kind == video.YouTube:
			h.raw(`<iframe class="card" width="100%" height="300" allowfullscreen`)
			h.attr("src", src.PlayURL)
			h.raw(`></iframe>`)
		case src.Kind == video.Local:
			h.raw(`<video class="card" width="100%" height="300" controls loop autoplay src="/video/file"></video>`)
		default:
			h.raw(`<video class="card" width="100%" height="300" controls loop autoplay`)
			h.attr("src", src.PlayURL)
			h.raw(`></video>`)
		}
		return h.err
	})
}

func messagesBody(list []messages.Message, now time.Time) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		if len(list) == 0 {
			h.raw(`<p class="card muted">No messages to show.</p>`)
			return h.err
		}
		h.raw(`<ul class="messages">`)
		for _, m := range list {
			h.raw(`<li class="card"`)
			h.attr("id", "message-"+m.ID)
			h.raw(`><time class="muted"`)
			h.attr("datetime", m.CreatedAt.Format(time.RFC3339))
			h.raw(`>`)
			h.text(m.Age(now))
			h.raw(`</time><h2>`)
			h.text(m.Title)
			h.raw(`</h2><p>`)
			h.text(m.Body)
			h.raw(`</p></li>`)
		}
		h.raw(`</ul><form method="post" action="/messages/clear"><button type="submit">Clear</button></form>`)
		return h.err
	})
}

func aboutBody(name string, members []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="card"><h2>`)
		h.text(name)
		h.raw(`</h2><ul>`)
		for _, m := range members {
			h.raw(`<li>`)
			h.text(m)
			h.raw(`</li>`)
		}
		h.raw(`</ul><img src="/about/qr.png" width="256" height="256" alt="Team QR code"></section>`)
		return h.err
	})
}

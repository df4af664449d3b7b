package background

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ImageSource maps a reference to a URL the page can load. It reports false
// when the resource is unavailable, in which case no image is drawn.
type ImageSource func(uri string) (src string, ok bool)

// DirectSource uses the reference itself as the image URL.
func DirectSource(uri string) (string, bool) {
	return uri, uri != ""
}

const containerStyle = "position:relative;width:100%;height:100%;min-height:100vh;"

// Wrapper renders child inside a container that fills the available region.
// When snap is set and src can resolve it, the image covers the container
// behind child.
func Wrapper(snap Snapshot, src ImageSource, child templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		style := containerStyle
		state := Unset
		if snap.IsSet() && src != nil {
			if url, ok := src(snap.ImageURI); ok {
				state = Set
				style += "background-image:url(\"" + cssURL(url) + "\");background-size:cover;background-position:center;background-repeat:no-repeat;"
			}
		}

		if _, err := io.WriteString(w, `<div class="backdrop" data-background="`+state.String()+`" style="`+templ.EscapeString(style)+`">`); err != nil {
			return err
		}
		if child != nil {
			if err := child.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Wrap renders child over whatever snapshot is current at render time.
func (s *Store) Wrap(src ImageSource, child templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Wrapper(s.Get(), src, child).Render(ctx, w)
	})
}

var cssURLReplacer = strings.NewReplacer(
	`"`, "%22",
	`'`, "%27",
	`(`, "%28",
	`)`, "%29",
	`\`, "%5C",
	" ", "%20",
	"\n", "%0A",
	"\r", "%0D",
	"\t", "%09",
	"<", "%3C",
	">", "%3E",
)

// cssURL percent-encodes characters that could end a CSS url("...") token.
func cssURL(u string) string {
	return cssURLReplacer.Replace(u)
}

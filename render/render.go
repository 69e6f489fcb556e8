package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"vidsite/storage"
)

// Renderer produces artifact bytes from records. Implementations must be
// deterministic for identical input: the publish pipeline relies on
// byte-for-byte comparison against the previous output to detect changes.
type Renderer interface {
	RenderItem(rec storage.MetadataRecord, related []storage.MetadataRecord) ([]byte, error)
	RenderIndex(records []storage.MetadataRecord) ([]byte, error)
}

// HTMLRenderer renders item and index pages from html/template templates.
// Built-in templates are used unless the template directory provides
// video.html / index.html overrides.
type HTMLRenderer struct {
	siteURL string
	naming  string
	item    *template.Template
	index   *template.Template
}

// NewHTMLRenderer builds a renderer for the given site base URL and naming
// policy. templateDir may be empty; override files there are optional.
func NewHTMLRenderer(siteURL, naming, templateDir string) (*HTMLRenderer, error) {
	item, err := loadTemplate(templateDir, "video.html", builtinItemTemplate)
	if err != nil {
		return nil, fmt.Errorf("item template: %w", err)
	}
	index, err := loadTemplate(templateDir, "index.html", builtinIndexTemplate)
	if err != nil {
		return nil, fmt.Errorf("index template: %w", err)
	}
	return &HTMLRenderer{
		siteURL: siteURL,
		naming:  naming,
		item:    item,
		index:   index,
	}, nil
}

func loadTemplate(dir, name, builtin string) (*template.Template, error) {
	text := builtin
	if dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, name)); err == nil {
			text = string(data)
		}
	}
	return template.New(name).Funcs(template.FuncMap{
		"count":    FormatCount,
		"duration": HumanDuration,
		"short":    ShortDescription,
	}).Parse(text)
}

type itemPage struct {
	Site     string
	Record   storage.MetadataRecord
	Related  []relatedEntry
	WatchURL string
	PageURL  string
}

type relatedEntry struct {
	Title string
	URL   string
	Views int64
	Date  string
}

type indexPage struct {
	Site    string
	Channel storage.ChannelInfo
	Items   []relatedEntry
	Count   int
}

// RenderItem renders one item page.
func (h *HTMLRenderer) RenderItem(rec storage.MetadataRecord, related []storage.MetadataRecord) ([]byte, error) {
	base := OutputBasename(rec, h.naming)
	page := itemPage{
		Site:     h.siteURL,
		Record:   rec,
		WatchURL: "https://www.youtube.com/watch?v=" + rec.ID,
		PageURL:  h.siteURL + "/videos/" + base + ".html",
	}
	for _, r := range related {
		page.Related = append(page.Related, h.entry(r))
	}

	var buf bytes.Buffer
	if err := h.item.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render item %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

// RenderIndex renders the index page from the full publishable record set.
func (h *HTMLRenderer) RenderIndex(records []storage.MetadataRecord) ([]byte, error) {
	page := indexPage{Site: h.siteURL, Count: len(records)}
	if len(records) > 0 {
		page.Channel = records[0].Channel
	}
	for _, r := range records {
		page.Items = append(page.Items, h.entry(r))
	}

	var buf bytes.Buffer
	if err := h.index.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *HTMLRenderer) entry(r storage.MetadataRecord) relatedEntry {
	date := r.LastEditedAt
	if date == "" {
		date = r.PublishedAt
	}
	return relatedEntry{
		Title: r.Title,
		URL:   h.siteURL + "/videos/" + OutputBasename(r, h.naming) + ".html",
		Views: r.ViewCount,
		Date:  date,
	}
}

const builtinItemTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Record.Title}}</title>
<meta name="description" content="{{short .Record.Description}}">
<link rel="canonical" href="{{.PageURL}}">
</head>
<body>
<main>
<h1>{{.Record.Title}}</h1>
<p class="meta">
{{if .Record.PublishedAt}}<time datetime="{{.Record.PublishedAt}}">{{.Record.PublishedAt}}</time> · {{end}}{{duration .Record.DurationSeconds}} · {{count .Record.ViewCount}} views · {{count .Record.LikeCount}} likes
</p>
<div class="player">
<iframe src="https://www.youtube.com/embed/{{.Record.ID}}" title="{{.Record.Title}}" allowfullscreen></iframe>
<p><a href="{{.WatchURL}}" rel="noopener">Watch on YouTube</a></p>
</div>
{{if .Record.Description}}<section class="description"><p>{{.Record.Description}}</p></section>{{end}}
{{if .Record.Tags}}<ul class="tags">{{range .Record.Tags}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Related}}
<section class="related">
<h2>Related</h2>
<ul>
{{range .Related}}<li><a href="{{.URL}}">{{.Title}}</a> · {{count .Views}} views{{if .Date}} · {{.Date}}{{end}}</li>
{{end}}</ul>
</section>
{{end}}
<footer>
<p>{{.Record.Channel.Title}}{{if .Record.Channel.Subscribers}} · {{count .Record.Channel.Subscribers}} subscribers{{end}}</p>
</footer>
</main>
</body>
</html>
`

const builtinIndexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Channel.Title}}{{if not .Channel.Title}}Video Library{{end}}</title>
<link rel="canonical" href="{{.Site}}">
</head>
<body>
<main>
<h1>{{if .Channel.Title}}{{.Channel.Title}}{{else}}Video Library{{end}}</h1>
<p class="meta">{{.Count}} videos{{if .Channel.Subscribers}} · {{count .Channel.Subscribers}} subscribers{{end}}</p>
<ul class="videos">
{{range .Items}}<li><a href="{{.URL}}">{{.Title}}</a>{{if .Date}} · {{.Date}}{{end}} · {{count .Views}} views</li>
{{end}}</ul>
</main>
</body>
</html>
`

// Package render turns cached metadata records into site artifacts: item
// pages, the index page, and the sitemap document.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"vidsite/storage"
)

// Naming policies for artifact basenames.
const (
	NamingSlug = "slug"
	NamingID   = "id"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
	idLikeSlug   = regexp.MustCompile(`^[a-z0-9_-]{11}$`)
)

// Slugify derives a URL-safe name from a title.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// IDLikeSlug reports whether a slug looks like a raw platform id rather than
// a curated, title-derived name.
func IDLikeSlug(slug, id string) bool {
	s := strings.ToLower(slug)
	if s == strings.ToLower(id) || s == "video-"+strings.ToLower(id) {
		return true
	}
	return idLikeSlug.MatchString(s)
}

// OutputBasename picks the artifact filename base for a record under the
// given naming policy. Slug collisions overwrite, last write wins.
func OutputBasename(r storage.MetadataRecord, naming string) string {
	if naming == NamingID {
		if r.ID != "" {
			return r.ID
		}
	}
	if r.Slug != "" {
		return r.Slug
	}
	if s := Slugify(r.Title); s != "" {
		return s
	}
	if r.ID != "" {
		return r.ID
	}
	return "video"
}

// HumanDuration formats seconds as "1h 2m 3s", dropping empty leading units.
func HumanDuration(sec int64) string {
	h := sec / 3600
	m := sec % 3600 / 60
	s := sec % 60
	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}

// FormatCount renders a non-negative count with thousands separators.
func FormatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// ShortDescription returns the first non-empty line of a description,
// truncated for use as a summary.
func ShortDescription(desc string) string {
	for _, line := range strings.Split(desc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > 180 {
			return string(runes[:180]) + "…"
		}
		return line
	}
	return ""
}

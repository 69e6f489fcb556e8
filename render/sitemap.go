package render

import (
	"encoding/xml"
	"time"

	"vidsite/storage"
)

const sitemapXMLNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

// urlSet is the root element of a sitemap document.
type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Sitemap renders the sitemap document for the current record set: the site
// root plus one entry per item page. Callers pass only records that should
// be published; tombstoned records must already be filtered out.
func Sitemap(siteURL, naming string, records []storage.MetadataRecord) ([]byte, error) {
	today := time.Now().UTC().Format("2006-01-02")

	set := urlSet{
		XMLNS: sitemapXMLNS,
		URLs: []sitemapURL{{
			Loc:        siteURL,
			LastMod:    today,
			ChangeFreq: "daily",
			Priority:   "1.0",
		}},
	}

	for _, r := range records {
		lastmod := r.LastEditedAt
		if lastmod == "" {
			lastmod = r.PublishedAt
		}
		if lastmod == "" {
			lastmod = today
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        siteURL + "/videos/" + OutputBasename(r, naming) + ".html",
			LastMod:    lastmod,
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

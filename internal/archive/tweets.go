package archive

import (
	"fmt"
	"html"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// createdAtLayout is how the export formats created_at,
// e.g. "Wed Oct 10 20:19:24 +0000 2018".
const createdAtLayout = time.RubyDate

type tweetEnvelope struct {
	Tweet tweetData `json:"tweet"`
}

type tweetMedia struct {
	MediaURL      string `json:"media_url"`
	MediaURLHTTPS string `json:"media_url_https"`
	Type          string `json:"type"`
}

type tweetData struct {
	IDStr                string `json:"id_str"`
	CreatedAt            string `json:"created_at"`
	FullText             string `json:"full_text"`
	Source               string `json:"source"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	InReplyToUserIDStr   string `json:"in_reply_to_user_id_str"`
	ExtendedEntities     struct {
		Media []tweetMedia `json:"media"`
	} `json:"extended_entities"`
}

// toRecord converts one export entry. mediaDir is the absolute media
// directory of the archive.
func toRecord(t tweetData, mediaDir string) (migrate.Record, error) {
	if t.IDStr == "" {
		return migrate.Record{}, fmt.Errorf("tweet without id_str")
	}

	createdAt, err := time.Parse(createdAtLayout, t.CreatedAt)
	if err != nil {
		return migrate.Record{}, fmt.Errorf("tweet %s: created_at %q: %w", t.IDStr, t.CreatedAt, err)
	}

	rec := migrate.Record{
		ID:          t.IDStr,
		CreatedAt:   createdAt,
		Text:        html.UnescapeString(t.FullText),
		InReplyToID: t.InReplyToStatusIDStr,
		Client:      clientName(t.Source),
	}

	for _, m := range t.ExtendedEntities.Media {
		u := m.MediaURL
		if u == "" {
			u = m.MediaURLHTTPS
		}
		if u == "" {
			continue
		}
		name := t.IDStr + "-" + path.Base(u)
		rec.Media = append(rec.Media, migrate.Media{
			Name: name,
			Path: filepath.Join(mediaDir, name),
		})
	}
	return rec, nil
}

// clientName pulls the visible label out of the export's source anchor,
// e.g. `<a href="..." rel="nofollow">Twitter for iPhone</a>`.
func clientName(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return ""
	}
	if a := doc.Find("a").First(); a.Length() > 0 {
		return strings.TrimSpace(a.Text())
	}
	return strings.TrimSpace(doc.Text())
}

package crossbell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

var noteSources = []string{"T2C", "Twitter"}

// Attachment is a media entry of a note.
type Attachment struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	MimeType string `json:"mime_type,omitempty"`
}

// NoteMetadata is the body stored for every published note.
type NoteMetadata struct {
	Type          string       `json:"type"`
	Sources       []string     `json:"sources"`
	Content       string       `json:"content"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	ExternalURLs  []string     `json:"external_urls"`
	DatePublished string       `json:"date_published"`
}

type putNoteRequest struct {
	Metadata NoteMetadata `json:"metadata"`
}

type putNoteResponse struct {
	Transaction struct {
		Hash string `json:"hash"`
	} `json:"transaction"`
	Data struct {
		NoteID json.Number `json:"noteId"`
	} `json:"data"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Publish uploads the record's media and posts the note on targetIdentity.
// No note is posted when any upload fails.
func (c *Client) Publish(ctx context.Context, targetIdentity string, rec migrate.Record) (migrate.Receipt, error) {
	if err := characterID(targetIdentity); err != nil {
		return migrate.Receipt{}, err
	}

	attachments, err := c.uploadMedia(ctx, rec.Media)
	if err != nil {
		return migrate.Receipt{}, err
	}

	meta := c.NoteFor(rec, attachments)
	body, err := json.Marshal(putNoteRequest{Metadata: meta})
	if err != nil {
		return migrate.Receipt{}, err
	}

	url := fmt.Sprintf("%s/v1/siwe/contract/characters/%s/notes", c.cfg.IndexerURL, targetIdentity)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return migrate.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out putNoteResponse
	if err := c.do(ctx, req, &out); err != nil {
		return migrate.Receipt{}, err
	}

	noteID := out.Data.NoteID.String()
	receipt := migrate.Receipt{
		NoteID: noteID,
		TxHash: out.Transaction.Hash,
	}
	if noteID != "" {
		receipt.URI = fmt.Sprintf("csb://note/%s/%s", targetIdentity, noteID)
	}
	c.seen.SetDefault(existsKey(targetIdentity, rec.ID), true)
	return receipt, nil
}

// NoteFor builds the metadata a record is published with.
func (c *Client) NoteFor(rec migrate.Record, attachments []Attachment) NoteMetadata {
	return NoteMetadata{
		Type:          "note",
		Sources:       noteSources,
		Content:       rec.Text,
		Attachments:   attachments,
		ExternalURLs:  []string{c.TweetURL(rec.ID)},
		DatePublished: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// uploadMedia keeps attachment order regardless of upload completion order.
func (c *Client) uploadMedia(ctx context.Context, media []migrate.Media) ([]Attachment, error) {
	if len(media) == 0 {
		return nil, nil
	}

	out := make([]Attachment, len(media))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MediaConcurrency)
	for i, m := range media {
		g.Go(func() error {
			addr, err := c.upload(gctx, m)
			if err != nil {
				return fmt.Errorf("upload %s: %w", m.Name, err)
			}
			out[i] = Attachment{
				Name:     m.Name,
				Address:  addr,
				MimeType: mime.TypeByExtension(filepath.Ext(m.Name)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) upload(ctx context.Context, m migrate.Media) (string, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", m.Name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.IPFSURL+"/upload", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out uploadResponse
	if err := c.do(ctx, req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("relay returned no address")
	}
	return out.URL, nil
}

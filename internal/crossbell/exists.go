package crossbell

import (
	"context"
	"net/http"
	"net/url"
)

type notesResponse struct {
	Count int `json:"count"`
}

func existsKey(targetIdentity, recordID string) string {
	return targetIdentity + "/" + recordID
}

// Exists reports whether a note on targetIdentity already links to the
// record's source URL. Only positive answers are cached; a record that is
// absent now may be published later in the run.
func (c *Client) Exists(ctx context.Context, targetIdentity, recordID string) (bool, error) {
	key := existsKey(targetIdentity, recordID)
	if _, ok := c.seen.Get(key); ok {
		return true, nil
	}

	q := url.Values{}
	q.Set("characterId", targetIdentity)
	q.Set("externalUrls", c.TweetURL(recordID))
	q.Set("limit", "1")

	req, err := http.NewRequest(http.MethodGet, c.cfg.IndexerURL+"/v1/notes?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	var out notesResponse
	if err := c.do(ctx, req, &out); err != nil {
		return false, err
	}
	if out.Count > 0 {
		c.seen.SetDefault(key, true)
		return true, nil
	}
	return false, nil
}

package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// decodeJSON handles JSON Feed documents (https://jsonfeed.org). Items are
// mapped onto the same entry shape as the XML dialects.
func decodeJSON(data []byte, opts Options) ([]Entry, error) {
	if gofeed.DetectFeedType(bytes.NewReader(data)) != gofeed.FeedTypeJSON {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedDocument)
	}

	var head struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if !strings.Contains(head.Version, "jsonfeed.org") {
		return nil, fmt.Errorf("%w: JSON document without a jsonfeed.org version", ErrUnsupportedFormat)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		summary := item.Description
		if strings.TrimSpace(summary) == "" {
			summary = item.Content
		}
		published := item.Published
		if strings.TrimSpace(published) == "" {
			published = item.Updated
		}
		entries = append(entries, newEntry(
			strings.TrimSpace(item.Title),
			link,
			strings.TrimSpace(summary),
			published,
			opts,
		))
	}
	return entries, nil
}

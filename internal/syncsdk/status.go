package syncsdk

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/imroc/req/v3"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncmsg"
)

// StatusAPI is the poll fallback: a plain request/response status check
// used when no stream is available, or as an on-demand refresh.
type StatusAPI struct {
	client *req.Client
}

func newStatusAPI(client *req.Client) *StatusAPI {
	return &StatusAPI{client: client}
}

// Get returns the current snapshot for a source, or (nil, nil) when no
// job is active.
func (s *StatusAPI) Get(ctx context.Context, sourceID string) (*progress.Snapshot, error) {
	if sourceID == "" {
		return nil, ErrNoSourceID
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/api/sources/%s/sync/status", url.PathEscape(sourceID)))

	if err := handleAPIError(resp, err, "sync status"); err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Bytes())
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		// no active job for this source
		return nil, nil
	}

	snap, err := syncmsg.DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("sdk: sync status: %w", err)
	}

	return snap, nil
}

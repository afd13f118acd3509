package syncsdk

import (
	"fmt"
	"time"

	"github.com/imroc/req/v3"

	"github.com/docboxhq/docbox/internal/version"
)

const (
	HeaderClientVersion = "X-DocBox-Version"
)

// SDK is the main client for the DocBox sync API: the poll fallback
// plus a factory for per-job progress streams.
type SDK struct {
	client *req.Client
	cfg    *Config
	Status *StatusAPI
}

// New creates a new DocBox SDK client.
func New(cfg *Config) (*SDK, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := req.C().
		SetBaseURL(cfg.BaseURL).
		SetUserAgent("DocBox/"+version.Version).
		SetCommonHeader(HeaderClientVersion, version.Version).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if cfg.Credentials != nil {
		creds := cfg.Credentials
		client.OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			// read per request, so rotated tokens take effect
			token, err := creds.Token(r.Context())
			if err != nil {
				return err
			}
			r.SetBearerAuthToken(token)
			return nil
		})
	}

	return &SDK{
		client: client,
		cfg:    cfg,
		Status: newStatusAPI(client),
	}, nil
}

// ProgressOption tunes one progress stream.
type ProgressOption func(*progressOptions)

type progressOptions struct {
	transport    TransportKind
	reconnect    ReconnectConfig
	pollInterval time.Duration
	pingPeriod   time.Duration
}

// WithTransport selects the delivery mechanism. Default is the duplex
// websocket stream.
func WithTransport(kind TransportKind) ProgressOption {
	return func(o *progressOptions) { o.transport = kind }
}

// WithReconnect overrides the retry policy.
func WithReconnect(cfg ReconnectConfig) ProgressOption {
	return func(o *progressOptions) { o.reconnect = cfg }
}

// WithPollInterval sets the poll transport's refresh interval.
func WithPollInterval(d time.Duration) ProgressOption {
	return func(o *progressOptions) { o.pollInterval = d }
}

// WithPingPeriod sets the duplex transport's keepalive interval.
func WithPingPeriod(d time.Duration) ProgressOption {
	return func(o *progressOptions) { o.pingPeriod = d }
}

// Progress builds the streaming client for one sync job. The caller
// picks the transport; all three yield the same snapshots and the same
// terminal-phase semantics.
func (s *SDK) Progress(sourceID string, opts ...ProgressOption) (*ProgressClient, error) {
	if sourceID == "" {
		return nil, ErrNoSourceID
	}

	o := progressOptions{transport: TransportWebSocket}
	for _, opt := range opts {
		opt(&o)
	}

	var dialer TransportDialer
	switch o.transport {
	case TransportWebSocket:
		dialer = &WSDialer{BaseURL: s.cfg.BaseURL, SourceID: sourceID, PingPeriod: o.pingPeriod}
	case TransportSSE:
		dialer = &SSEDialer{Client: s.client, SourceID: sourceID}
	case TransportPoll:
		dialer = &PollDialer{Status: s.Status, SourceID: sourceID, Interval: o.pollInterval}
	default:
		return nil, fmt.Errorf("sdk: unknown transport kind %q", o.transport)
	}

	creds := s.cfg.Credentials
	if creds == nil {
		// connect will fail with an auth error instead of dialing
		creds = StaticToken("")
	}

	return NewProgressClient(sourceID, dialer, creds, o.reconnect), nil
}

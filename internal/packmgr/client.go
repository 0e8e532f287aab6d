package packmgr

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/imroc/req/v3"
	"github.com/openmined/remoteassets/internal/version"
)

const (
	EndpointExec    = "/crx/packmgr/service/exec.json"
	EndpointUpdate  = "/crx/packmgr/update.jsp"
	EndpointService = "/crx/packmgr/service.jsp"

	defaultTimeout = 60 * time.Second
)

type execResponse struct {
	Success *bool  `json:"success"`
	Path    string `json:"path"`
	Msg     string `json:"msg"`
}

// Binary is a file fetched from the remote server
type Binary struct {
	Data        []byte
	ContentType string
}

type ClientOption func(*req.Client)

// WithTimeout bounds every remote call
func WithTimeout(d time.Duration) ClientOption {
	return func(c *req.Client) {
		c.SetTimeout(d)
	}
}

// WithTLSConfig sets the TLS configuration of the transport
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *req.Client) {
		c.SetTLSClientConfig(cfg)
	}
}

// Client talks to the package manager of a remote author instance.
// Credentials are sent preemptively with every request.
type Client struct {
	client *req.Client
	server string
}

func NewClient(server, user, password string, opts ...ClientOption) *Client {
	server = strings.TrimSuffix(server, "/")
	c := req.C().
		SetBaseURL(server).
		SetCommonBasicAuth(user, password).
		SetUserAgent(version.UserAgent()).
		SetTimeout(defaultTimeout).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	for _, opt := range opts {
		opt(c)
	}

	return &Client{client: c, server: server}
}

func (c *Client) Server() string {
	return c.server
}

// RemotePath maps a repository path to the path the remote server serves it on.
func RemotePath(p string) string {
	p = strings.TrimPrefix(p, "/")
	p = strings.ReplaceAll(p, "jcr:content", "_jcr_content")
	p = strings.ReplaceAll(p, " ", "%20")
	return "/" + p
}

// RemoteURI is the absolute URL of a repository path on the remote server
func (c *Client) RemoteURI(p string) string {
	return c.server + RemotePath(p)
}

// Create registers an empty package and records its remote path.
func (c *Client) Create(ctx context.Context, pkg *Package) error {
	var result execResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"cmd":            "create",
			"packageName":    pkg.Name,
			"groupName":      pkg.Group,
			"packageVersion": pkg.Version,
		}).
		Post(EndpointExec)

	if err := c.handleExecResponse(resp, err, "create", &result); err != nil {
		return err
	}

	pkg.Path = result.Path
	slog.Debug("packmgr created", "server", c.server, "path", pkg.Path)
	return nil
}

// Configure attaches the description and filter to a created package.
func (c *Client) Configure(ctx context.Context, pkg *Package) error {
	if pkg.Path == "" {
		return &RemoteError{Op: "configure", Server: c.server, Err: ErrNotCreated}
	}

	filter, err := pkg.Filter.JSON()
	if err != nil {
		return err
	}

	var result execResponse
	resp, err := c.client.R().
		SetContext(ctx).
		EnableForceMultipart().
		SetFormData(map[string]string{
			"path":         pkg.Path,
			"packageName":  pkg.Name,
			"packageGroup": pkg.Group,
			"description":  pkg.Description,
			"filter":       filter,
		}).
		Post(EndpointUpdate)

	if err := c.handleExecResponse(resp, err, "configure", &result); err != nil {
		return err
	}

	slog.Debug("packmgr configured", "server", c.server, "path", pkg.Path)
	return nil
}

// Build assembles the package binary on the remote server.
func (c *Client) Build(ctx context.Context, pkg *Package) error {
	resp, err := c.service(ctx, "build", pkg)
	if err := c.handleStatus(resp, err, "build"); err != nil {
		return err
	}

	slog.Debug("packmgr built", "server", c.server, "path", pkg.Path)
	return nil
}

// Download fetches the built package.
func (c *Client) Download(ctx context.Context, pkg *Package) ([]byte, error) {
	resp, err := c.service(ctx, "get", pkg)
	if err := c.handleStatus(resp, err, "get"); err != nil {
		return nil, err
	}

	data := resp.Bytes()
	slog.Debug("packmgr downloaded", "server", c.server, "path", pkg.Path, "size", humanize.Bytes(uint64(len(data))))
	return data, nil
}

// Remove deletes the package from the remote server.
func (c *Client) Remove(ctx context.Context, pkg *Package) error {
	resp, err := c.service(ctx, "rm", pkg)
	if err := c.handleStatus(resp, err, "rm"); err != nil {
		return err
	}

	slog.Debug("packmgr removed", "server", c.server, "path", pkg.Path)
	return nil
}

// FetchRendition downloads a single binary by repository path.
func (c *Client) FetchRendition(ctx context.Context, p string) (*Binary, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(RemotePath(p))

	if err := c.handleStatus(resp, err, "fetch "+p); err != nil {
		return nil, err
	}

	return &Binary{
		Data:        resp.Bytes(),
		ContentType: resp.GetContentType(),
	}, nil
}

func (c *Client) service(ctx context.Context, cmd string, pkg *Package) (*req.Response, error) {
	return c.client.R().
		SetContext(ctx).
		EnableForceMultipart().
		SetFormData(map[string]string{
			"cmd":   cmd,
			"name":  pkg.Name,
			"group": pkg.Group,
		}).
		Post(EndpointService)
}

func (c *Client) handleStatus(resp *req.Response, requestErr error, op string) error {
	if requestErr != nil {
		return &RemoteError{Op: op, Server: c.server, Err: requestErr}
	}
	if resp.GetStatusCode() != http.StatusOK {
		return &RemoteError{
			Op:         op,
			Server:     c.server,
			StatusCode: resp.GetStatusCode(),
			Message:    truncate(resp.String(), 256),
		}
	}
	return nil
}

func (c *Client) handleExecResponse(resp *req.Response, requestErr error, op string, result *execResponse) error {
	if err := c.handleStatus(resp, requestErr, op); err != nil {
		return err
	}

	if err := jsonUnmarshal(resp.Bytes(), result); err != nil {
		return &RemoteError{Op: op, Server: c.server, StatusCode: resp.GetStatusCode(), Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if result.Success == nil {
		return &RemoteError{Op: op, Server: c.server, StatusCode: resp.GetStatusCode(), Err: fmt.Errorf("%w: missing success", ErrMalformedResponse)}
	}
	if !*result.Success {
		return &RemoteError{Op: op, Server: c.server, StatusCode: resp.GetStatusCode(), Message: result.Msg, Err: ErrUnsuccessful}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

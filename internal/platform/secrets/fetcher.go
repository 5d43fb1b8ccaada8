package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/elfogon/api/internal/platform/config"
)

const (
	refScheme      = "sm://"
	defaultVersion = "latest"
	accessTimeout  = 10 * time.Second
)

// ErrInvalidRef is returned for references that are not sm:// URIs.
var ErrInvalidRef = errors.New("secrets: invalid secret reference")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves sm://name[@version] references via Google Secret Manager,
// caching resolved values for the process lifetime.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClient injects a preconfigured Secret Manager client, primarily for tests.
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		f.client = client
		f.ownsClient = false
	}
}

// NewFetcher constructs a Fetcher bound to the given project.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}

	fetcher := &Fetcher{
		projectID: projectID,
		logger:    zap.NewNop(),
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.client == nil {
		client, err := secretmanager.NewClient(ctx, []option.ClientOption{}...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}
	return fetcher, nil
}

// ResolveSecret fetches the secret payload behind an sm:// reference. It
// satisfies config.SecretResolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	name, version, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	cacheKey := name + "@" + version
	f.mu.RLock()
	if cached, ok := f.cache[cacheKey]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, accessTimeout)
	defer cancel()

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	value := string(resp.GetPayload().GetData())

	f.mu.Lock()
	f.cache[cacheKey] = value
	f.mu.Unlock()

	f.logger.Debug("secret resolved", zap.String("secret", name), zap.String("version", version))
	return value, nil
}

// Close releases the underlying client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func parseRef(ref string) (name, version string, err error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, refScheme) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	body := strings.TrimPrefix(ref, refScheme)
	if body == "" {
		return "", "", fmt.Errorf("%w: empty secret name", ErrInvalidRef)
	}
	version = defaultVersion
	if at := strings.LastIndexByte(body, '@'); at >= 0 {
		version = strings.TrimSpace(body[at+1:])
		body = body[:at]
		if version == "" {
			version = defaultVersion
		}
	}
	name = strings.TrimSpace(body)
	if name == "" {
		return "", "", fmt.Errorf("%w: empty secret name", ErrInvalidRef)
	}
	return name, version, nil
}

var _ config.SecretResolver = (*Fetcher)(nil)

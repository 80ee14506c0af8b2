package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ryawaa/twinkle/src/helpers"
	"github.com/ryawaa/twinkle/src/interfaces"
	"github.com/ryawaa/twinkle/src/logger"
	"github.com/ryawaa/twinkle/src/models"
)

// maxBodyBytes bounds what we read from sparkle per response
const maxBodyBytes = 8 << 20

type NetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
	mu           sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewNetworkManager(cfg *models.MConfig, log *logger.Logger) *NetworkManager {
	nm := &NetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(cfg.Network.Proxies, cfg.Network.UserAgent, log),
		Logger:       log,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *NetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

// RotateProxy moves to the next proxy and rebuilds the client.
func (nm *NetworkManager) RotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	client := nm.createClient()

	nm.mu.Lock()
	nm.Client = client
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get performs a single GET request. Upstream failures are not retried;
// transport errors rotate the proxy for the next call.
func (nm *NetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) (*models.MResponse, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "application/json")

	nm.mu.RLock()
	client := nm.Client
	nm.mu.RUnlock()

	resp, err := client.Do(req)
	if err != nil {
		nm.Logger.Warning("GET %s failed: %v", reqURL.Path, err)
		nm.RotateProxy()
		return nil, fmt.Errorf("request to %s failed: %w", reqURL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", reqURL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		nm.Logger.Debug("GET %s answered %d", reqURL.Path, resp.StatusCode)
	}

	return &models.MResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// Package countries looks up the public country directory used by the phone
// login form, with an embedded fallback when the network is unavailable.
package countries

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lumachat/lumachat/pkg/log"
)

// Country is a dialing-directory entry.
type Country struct {
	Name        string `json:"name"`
	CallingCode string `json:"calling_code"`
	Flag        string `json:"flag"`
}

// Config holds the directory endpoint settings.
type Config struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// restCountry is the REST Countries response shape, reduced to the fields
// the login form needs.
type restCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	IDD struct {
		Root     string   `json:"root"`
		Suffixes []string `json:"suffixes"`
	} `json:"idd"`
	Flag string `json:"flag"`
}

// fallback is served whenever the directory cannot be fetched.
var fallback = []Country{
	{Name: "India", CallingCode: "+91", Flag: "🇮🇳"},
	{Name: "United Kingdom", CallingCode: "+44", Flag: "🇬🇧"},
	{Name: "United States", CallingCode: "+1", Flag: "🇺🇸"},
}

// Client fetches and caches the country directory. Concurrent fetches for a
// cold cache are collapsed into one request.
type Client struct {
	cfg  Config
	http *http.Client
	sf   singleflight.Group

	mu        sync.RWMutex
	cached    []Country
	expiresAt time.Time
}

// NewClient creates a country directory client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// All returns the directory sorted by name. Fetch failures fall back to the
// embedded list and never surface as errors.
func (c *Client) All(ctx context.Context) []Country {
	c.mu.RLock()
	if c.cached != nil && time.Now().Before(c.expiresAt) {
		cached := c.cached
		c.mu.RUnlock()
		return cached
	}
	c.mu.RUnlock()

	result, _, _ := c.sf.Do("countries", func() (interface{}, error) {
		list, err := c.fetch(ctx)
		if err != nil {
			ctxLogger := log.Ctx(ctx)
			ctxLogger.Warn().Err(err).Msg("failed to fetch countries, using fallback")
			return fallback, nil
		}

		c.mu.Lock()
		c.cached = list
		c.expiresAt = time.Now().Add(c.cfg.CacheTTL)
		c.mu.Unlock()
		return list, nil
	})

	return result.([]Country)
}

func (c *Client) fetch(ctx context.Context) ([]Country, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build countries request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("countries endpoint returned status %d", resp.StatusCode)
	}

	var raw []restCountry
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode countries response: %w", err)
	}

	list := make([]Country, 0, len(raw))
	for _, rc := range raw {
		if rc.IDD.Root == "" || len(rc.IDD.Suffixes) == 0 {
			continue
		}
		code := rc.IDD.Root
		// Single-suffix entries carry the full dialing code; multi-suffix
		// countries share the root alone (the NANP style).
		if len(rc.IDD.Suffixes) == 1 {
			code += rc.IDD.Suffixes[0]
		}
		list = append(list, Country{
			Name:        rc.Name.Common,
			CallingCode: code,
			Flag:        rc.Flag,
		})
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("countries endpoint returned no dialable entries")
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

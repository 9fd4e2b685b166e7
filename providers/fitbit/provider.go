package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/goliatone/go-healthdata/core"
	"github.com/goliatone/go-healthdata/transport"
)

const (
	Domain     = "fitbit"
	APIBaseURL = "https://api.fitbit.com"
	AuthURL    = "https://www.fitbit.com/oauth2/authorize"
	TokenURL   = "https://api.fitbit.com/oauth2/token"

	ActivitySchemaID = "omh:fitbit:activity"
	SleepSchemaID    = "omh:fitbit:sleep"

	defaultRequestTimeout = 15 * time.Second
)

type Config struct {
	ClientID       string
	ClientSecret   string
	AuthURL        string
	TokenURL       string
	APIBaseURL     string
	RequestTimeout time.Duration
	// HTTPClient is the base client under the oauth2 transport.
	HTTPClient *http.Client
	// Grants receives the grant again after the oauth2 transport refreshed
	// its token. Fitbit rotates refresh tokens, so without it the stored
	// grant stops working after the first refresh.
	Grants core.GrantWriter
	Now    func() time.Time
}

func DefaultConfig() Config {
	return Config{
		AuthURL:        AuthURL,
		TokenURL:       TokenURL,
		APIBaseURL:     APIBaseURL,
		RequestTimeout: defaultRequestTimeout,
	}
}

type fetcher func(ctx context.Context, client *transport.RESTAdapter, day time.Time) (map[string]any, error)

// Provider serves daily fitbit summaries as single data points.
type Provider struct {
	cfg      Config
	oauth    *oauth2.Config
	fetchers map[string]fetcher
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.AuthURL) == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	provider := &Provider{cfg: cfg}
	if strings.TrimSpace(cfg.ClientID) != "" {
		provider.oauth = &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}
	}
	provider.fetchers = map[string]fetcher{
		"activity": provider.activityForDay,
		"sleep":    provider.sleepForDay,
	}
	return provider, nil
}

func (*Provider) Domain() string {
	return Domain
}

func (*Provider) ListSchemaIDs(context.Context) ([]string, error) {
	return []string{ActivitySchemaID, SleepSchemaID}, nil
}

func (p *Provider) ListSchemaVersions(_ context.Context, schemaID string) ([]int64, error) {
	if !p.serves(schemaID) {
		return []int64{}, nil
	}
	return []int64{1}, nil
}

// FetchData returns the day summary at req.Start, or today when no start is
// given. Versions other than 1 yield no data.
func (p *Provider) FetchData(ctx context.Context, req core.FetchRequest) ([]core.DataPoint, error) {
	if p == nil {
		return nil, fmt.Errorf("fitbit: provider is nil")
	}
	if req.Version != 1 {
		return nil, nil
	}
	dataType, err := core.DataTypeFromSchemaID(req.SchemaID)
	if err != nil {
		return nil, err
	}
	fetch, ok := p.fetchers[dataType]
	if !ok || core.ParseDomain(req.SchemaID) != Domain {
		return nil, fmt.Errorf("fitbit: unknown schema id %q", req.SchemaID)
	}

	day := p.cfg.Now()
	if req.Start != nil {
		day = *req.Start
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	client, source := p.client(ctx, req.Grant)
	summary, err := fetch(ctx, client, day)
	if err != nil {
		return nil, err
	}
	if err := p.saveRefreshedToken(ctx, req.Grant, source); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("fitbit: encode %s summary: %w", dataType, err)
	}
	return []core.DataPoint{{
		Owner:    req.Grant.Username,
		SchemaID: req.SchemaID,
		Version:  req.Version,
		Meta:     core.MetaData{Timestamp: &day},
		Payload:  payload,
	}}, nil
}

// client builds an authenticated REST adapter for the grant. The token
// refreshes itself only when client credentials are configured.
func (p *Provider) client(ctx context.Context, grant core.AuthorizationGrant) (*transport.RESTAdapter, oauth2.TokenSource) {
	token := &oauth2.Token{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
	}
	if grant.ExpiresAt != nil {
		token.Expiry = *grant.ExpiresAt
	}
	if p.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	}

	var source oauth2.TokenSource
	if p.oauth != nil {
		source = p.oauth.TokenSource(ctx, token)
	} else {
		source = oauth2.StaticTokenSource(token)
	}
	return transport.NewRESTAdapter(oauth2.NewClient(ctx, source)), source
}

// saveRefreshedToken writes the grant back when the token source holds a
// different access token than the one the grant started with.
func (p *Provider) saveRefreshedToken(ctx context.Context, grant core.AuthorizationGrant, source oauth2.TokenSource) error {
	if p.cfg.Grants == nil || source == nil {
		return nil
	}
	current, err := source.Token()
	if err != nil {
		return fmt.Errorf("fitbit: read refreshed token: %w", err)
	}
	if current == nil || current.AccessToken == grant.AccessToken {
		return nil
	}
	updated := grant
	updated.AccessToken = current.AccessToken
	if current.RefreshToken != "" {
		updated.RefreshToken = current.RefreshToken
	}
	if current.TokenType != "" {
		updated.TokenType = current.TokenType
	}
	if !current.Expiry.IsZero() {
		expiry := current.Expiry.UTC()
		updated.ExpiresAt = &expiry
	}
	if _, err := p.cfg.Grants.PutGrant(ctx, updated); err != nil {
		return fmt.Errorf("fitbit: save refreshed token for %s: %w", grant.Username, err)
	}
	return nil
}

func (p *Provider) serves(schemaID string) bool {
	schemaID = strings.TrimSpace(schemaID)
	return schemaID == ActivitySchemaID || schemaID == SleepSchemaID
}

type activityResponse struct {
	Summary struct {
		Steps       int64   `json:"steps"`
		CaloriesOut int64   `json:"caloriesOut"`
		Floors      *int64  `json:"floors"`
		Distances   []struct {
			Activity string  `json:"activity"`
			Distance float64 `json:"distance"`
		} `json:"distances"`
	} `json:"summary"`
}

func (p *Provider) activityForDay(ctx context.Context, client *transport.RESTAdapter, day time.Time) (map[string]any, error) {
	var response activityResponse
	target := fmt.Sprintf("%s/1/user/-/activities/date/%s.json", p.cfg.APIBaseURL, day.Format(time.DateOnly))
	if err := client.GetJSON(ctx, target, nil, p.cfg.RequestTimeout, &response); err != nil {
		return nil, fmt.Errorf("fitbit: activity for %s: %w", day.Format(time.DateOnly), err)
	}

	distance := 0.0
	for _, item := range response.Summary.Distances {
		if item.Activity == "total" {
			distance = item.Distance
			break
		}
	}
	data := map[string]any{
		"steps":        response.Summary.Steps,
		"calories_out": response.Summary.CaloriesOut,
		"distance":     distance,
	}
	if response.Summary.Floors != nil {
		data["floors"] = *response.Summary.Floors
	}
	return data, nil
}

type sleepResponse struct {
	Summary struct {
		TotalMinutesAsleep int64 `json:"totalMinutesAsleep"`
		TotalTimeInBed     int64 `json:"totalTimeInBed"`
	} `json:"summary"`
}

func (p *Provider) sleepForDay(ctx context.Context, client *transport.RESTAdapter, day time.Time) (map[string]any, error) {
	var response sleepResponse
	target := fmt.Sprintf("%s/1.2/user/-/sleep/date/%s.json", p.cfg.APIBaseURL, day.Format(time.DateOnly))
	if err := client.GetJSON(ctx, target, nil, p.cfg.RequestTimeout, &response); err != nil {
		return nil, fmt.Errorf("fitbit: sleep for %s: %w", day.Format(time.DateOnly), err)
	}
	return map[string]any{
		"minutes_asleep": response.Summary.TotalMinutesAsleep,
		"time_in_bed":    response.Summary.TotalTimeInBed,
	}, nil
}

var _ core.ProviderAdapter = (*Provider)(nil)

package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/promohub/internal/app/system/timeouts"
	"github.com/dalemusser/promohub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// RESTConfig configures the HTTP API backend.
type RESTConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.org".
	BaseURL string
	// HTTPClient is the transport. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// OAuth2 client credentials. When ClientID is empty requests are
	// sent without authentication.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string

	// MemberRoleIDs is recorded on every member created through the API.
	MemberRoleIDs []string

	Logger *zap.Logger
}

// REST is the Client backed by the records HTTP API.
type REST struct {
	baseURL       string
	httpClient    *http.Client
	memberRoleIDs []string
	log           *zap.Logger
}

var _ Client = (*REST)(nil)

// NewREST validates the configuration and builds the client.
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("resource: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("resource: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.ClientID != "" {
		if cfg.TokenURL == "" {
			return nil, errors.New("resource: TokenURL is required with ClientID")
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// The token source fetches tokens through the configured transport.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cc.Client(ctx)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &REST{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    httpClient,
		memberRoleIDs: cfg.MemberRoleIDs,
		log:           logger,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resource: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Unwrap maps the response onto the facade sentinels: 404 is ErrNotFound,
// 412 is ErrConflict, 409 or another client error mentioning "exists" is
// ErrAlreadyExists. Server errors never map to a sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusPreconditionFailed:
		return ErrConflict
	case e.StatusCode == http.StatusConflict:
		return ErrAlreadyExists
	case e.StatusCode >= 400 && e.StatusCode < 500 &&
		strings.Contains(strings.ToLower(e.Message), "exists"):
		return ErrAlreadyExists
	}
	return nil
}

func (c *REST) doRequest(ctx context.Context, method, path string, requestBody, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("resource: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("resource: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("resource: request to %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("resource: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}
		var shape struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &shape) == nil && (shape.Message != "" || shape.Error != "") {
			apiErr.Message = shape.Message
			if apiErr.Message == "" {
				apiErr.Message = shape.Error
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		c.log.Debug("records API error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("resource: failed to parse %s %s response: %w", method, path, err)
	}
	return nil
}

func seg(id string) string { return url.PathEscape(id) }

func (c *REST) getPromos(ctx context.Context, path string) ([]models.Promo, error) {
	var wire []wirePromo
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Promo, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.model())
	}
	return out, nil
}

func (c *REST) ListPromosDueToStart(ctx context.Context) ([]models.Promo, error) {
	return c.getPromos(ctx, "/promos/to-start")
}

func (c *REST) ListPromosDueToArchive(ctx context.Context) ([]models.Promo, error) {
	return c.getPromos(ctx, "/promos/to-archive")
}

func (c *REST) ListPromos(ctx context.Context) ([]models.Promo, error) {
	return c.getPromos(ctx, "/promos")
}

// ListPromosByStatus filters the full list; the API has no status query.
func (c *REST) ListPromosByStatus(ctx context.Context, status models.PromoStatus) ([]models.Promo, error) {
	all, err := c.ListPromos(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Promo
	for _, p := range all {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *REST) GetPromo(ctx context.Context, id string) (models.Promo, error) {
	var w wirePromo
	if err := c.doRequest(ctx, http.MethodGet, "/promos/"+seg(id), nil, &w); err != nil {
		return models.Promo{}, err
	}
	return w.model(), nil
}

func (c *REST) CreatePromo(ctx context.Context, p models.Promo) (models.Promo, error) {
	var w wirePromo
	err := c.doRequest(ctx, http.MethodPost, "/promos", wirePromoCreate{
		Name:      p.Name,
		StartDate: wireDate(p.StartDate),
		EndDate:   wireDate(p.EndDate),
		ProgramID: p.ProgramID,
		SiteID:    p.SiteID,
	}, &w)
	if err != nil {
		return models.Promo{}, err
	}
	created := w.model()
	if created.Name == "" {
		created.Name = p.Name
	}
	return created, nil
}

// UpdatePromo checks upd.ExpectStatus with a read before the write; the API
// has no conditional update. Concurrent writers in this process are ordered
// by the caller.
func (c *REST) UpdatePromo(ctx context.Context, id string, upd models.PromoUpdate) (models.Promo, error) {
	if upd.ExpectStatus != nil {
		cur, err := c.GetPromo(ctx, id)
		if err != nil {
			return models.Promo{}, err
		}
		if cur.Status != *upd.ExpectStatus {
			return models.Promo{}, fmt.Errorf("update promo %s: %w: status is %s", id, ErrConflict, cur.Status)
		}
	}
	var w wirePromo
	if err := c.doRequest(ctx, http.MethodPatch, "/promos/"+seg(id), promoPatch(upd), &w); err != nil {
		return models.Promo{}, err
	}
	p := w.model()
	if p.ID == "" {
		p.ID = id
	}
	if upd.Status != nil {
		p.Status = *upd.Status
	}
	return p, nil
}

func (c *REST) CreateMember(ctx context.Context, m models.Member) (models.Member, error) {
	var w wireMember
	err := c.doRequest(ctx, http.MethodPost, "/utilisateurs", wireMemberCreate{
		ID:        m.ID,
		LastName:  m.LastName,
		FirstName: m.FirstName,
		RoleIDs:   c.memberRoleIDs,
	}, &w)
	if err != nil {
		return models.Member{}, err
	}
	created := w.model()
	if created.ID == "" {
		created = m
	}
	return created, nil
}

func (c *REST) GetMember(ctx context.Context, id string) (models.Member, error) {
	var w wireMember
	if err := c.doRequest(ctx, http.MethodGet, "/utilisateurs/"+seg(id), nil, &w); err != nil {
		return models.Member{}, err
	}
	return w.model(), nil
}

func (c *REST) UpdateMember(ctx context.Context, id, firstName, lastName string) (models.Member, error) {
	var w wireMember
	err := c.doRequest(ctx, http.MethodPatch, "/utilisateurs/"+seg(id), wireMemberPatch{
		LastName:  lastName,
		FirstName: firstName,
	}, &w)
	if err != nil {
		return models.Member{}, err
	}
	m := w.model()
	if m.ID == "" {
		m = models.Member{ID: id, FirstName: firstName, LastName: lastName}
	}
	return m, nil
}

func (c *REST) CreateIdentification(ctx context.Context, memberID, promoID string) (models.Identification, error) {
	var w wireIdentification
	err := c.doRequest(ctx, http.MethodPost, "/identifications", map[string]any{
		"statutIdentificationId": identStatusPending,
		"promoId":                promoID,
		"utilisateurId":          memberID,
	}, &w)
	if err != nil {
		return models.Identification{}, err
	}
	ident := w.model(promoID)
	if ident.MemberID == "" {
		ident.MemberID = memberID
	}
	if ident.ID == "" {
		return models.Identification{}, errors.New("resource: create identification: response has no id")
	}
	return ident, nil
}

func (c *REST) UpdateIdentificationStatus(ctx context.Context, id string, status models.IdentificationStatus) (models.Identification, error) {
	cur, err := c.GetIdentification(ctx, id)
	if err != nil {
		return models.Identification{}, err
	}
	if cur.Status != models.IdentificationPending {
		return models.Identification{}, fmt.Errorf("update identification %s: %w: status is %s", id, ErrConflict, cur.Status)
	}

	var w wireIdentification
	err = c.doRequest(ctx, http.MethodPut, "/identifications/"+seg(id), map[string]any{
		"statutIdentificationId": identStatusID(status),
	}, &w)
	if err != nil {
		return models.Identification{}, err
	}
	ident := w.model("")
	if ident.ID == "" {
		ident.ID = id
	}
	ident.Status = status
	return ident, nil
}

func (c *REST) GetIdentification(ctx context.Context, id string) (models.Identification, error) {
	var w wireIdentification
	if err := c.doRequest(ctx, http.MethodGet, "/identifications/"+seg(id), nil, &w); err != nil {
		return models.Identification{}, err
	}
	return w.model(""), nil
}

func (c *REST) ListActivePrograms(ctx context.Context) ([]models.Program, error) {
	var wire []wireCatalogEntry
	if err := c.doRequest(ctx, http.MethodGet, "/formations/actif", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Program, 0, len(wire))
	for _, w := range wire {
		out = append(out, models.Program{ID: string(w.ID), Name: w.Name, Active: true})
	}
	return out, nil
}

func (c *REST) ListActiveSites(ctx context.Context) ([]models.Site, error) {
	var wire []wireCatalogEntry
	if err := c.doRequest(ctx, http.MethodGet, "/campuss/actif", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Site, 0, len(wire))
	for _, w := range wire {
		out = append(out, models.Site{ID: string(w.ID), Name: w.Name, Active: true})
	}
	return out, nil
}

// Ping issues the cheapest read the API offers.
func (c *REST) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/formations/actif", nil, nil)
}

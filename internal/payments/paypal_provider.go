package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	paypalOrderIntentCapture = "CAPTURE"
	paypalCaptureCompleted   = "COMPLETED"

	// Tokens are refreshed slightly before PayPal's advertised expiry so an
	// in-flight request never races the cutoff.
	paypalTokenSkew = 60 * time.Second
)

// PayPalLogger defines the logging contract for PayPal provider operations.
type PayPalLogger func(ctx context.Context, event string, fields map[string]any)

// PayPalProviderConfig configures the redirect-capture provider.
type PayPalProviderConfig struct {
	ClientID   string
	Secret     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     PayPalLogger
	Clock      func() time.Time
}

// PayPalProvider implements the redirect-then-capture flow against the PayPal
// Orders API. An OAuth client-credentials token is cached until shortly before
// its expiry.
type PayPalProvider struct {
	clientID string
	secret   string
	baseURL  string
	http     *http.Client
	logger   PayPalLogger
	clock    func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalProvider constructs the provider from the given configuration.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("paypal: base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &PayPalProvider{
		clientID: clientID,
		secret:   secret,
		baseURL:  baseURL,
		http:     httpClient,
		logger:   logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.accessToken != "" && now.Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(p.clientID + ":" + p.secret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("paypal: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: token request failed with status %d", resp.StatusCode)
	}

	var token paypalTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("paypal: token response missing access_token")
	}

	p.accessToken = token.AccessToken
	p.tokenExpiry = now.Add(time.Duration(token.ExpiresIn) * time.Second).Add(-paypalTokenSkew)
	return p.accessToken, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount paypalAmount `json:"amount"`
}

type paypalCreateOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext *paypalAppContext    `json:"application_context,omitempty"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrderResponse struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []paypalLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string       `json:"id"`
				Status string       `json:"status"`
				Amount paypalAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateSession creates a PayPal order and hands back the approval link the
// customer is redirected to.
func (p *PayPalProvider) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if req.Amount <= 0 {
		return Session{}, errors.New("paypal: session amount must be positive")
	}

	payload := paypalCreateOrderRequest{
		Intent: paypalOrderIntentCapture,
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount: paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        minorUnitsToDecimal(req.Amount),
			},
		}},
	}
	if req.SuccessURL != "" || req.CancelURL != "" {
		payload.ApplicationContext = &paypalAppContext{
			ReturnURL: req.SuccessURL,
			CancelURL: req.CancelURL,
		}
	}

	var order paypalOrderResponse
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return Session{}, err
	}

	redirectURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" {
			redirectURL = link.Href
			break
		}
	}

	p.logger(ctx, "payments.paypal.order.created", map[string]any{
		"orderId": order.ID,
		"status":  order.Status,
	})

	return Session{
		ID:          order.ID,
		Provider:    ProviderPayPal,
		RedirectURL: redirectURL,
		ExpiresAt:   p.clock().Add(3 * time.Hour),
	}, nil
}

// Confirm captures the approved PayPal order. Succeeded is true only when the
// capture status comes back COMPLETED.
func (p *PayPalProvider) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	orderID := strings.TrimSpace(req.SessionID)
	if orderID == "" {
		return Confirmation{}, errors.New("paypal: order id is required")
	}

	var order paypalOrderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := p.call(ctx, http.MethodPost, path, struct{}{}, &order); err != nil {
		return Confirmation{}, err
	}

	confirmation := Confirmation{
		Provider:      ProviderPayPal,
		TransactionID: orderID,
	}
	if len(order.PurchaseUnits) > 0 && len(order.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := order.PurchaseUnits[0].Payments.Captures[0]
		confirmation.TransactionID = capture.ID
		confirmation.Succeeded = capture.Status == paypalCaptureCompleted
		confirmation.Currency = capture.Amount.CurrencyCode
		confirmation.Amount = decimalToMinorUnits(capture.Amount.Value)
	}

	p.logger(ctx, "payments.paypal.order.captured", map[string]any{
		"orderId":       orderID,
		"transactionId": confirmation.TransactionID,
		"succeeded":     confirmation.Succeeded,
	})
	return confirmation, nil
}

func (p *PayPalProvider) call(ctx context.Context, method, path string, payload, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paypal: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal: %s %s failed with status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("paypal: decode response: %w", err)
		}
	}
	return nil
}

func minorUnitsToDecimal(amount int64) string {
	return strconv.FormatFloat(float64(amount)/100, 'f', 2, 64)
}

func decimalToMinorUnits(value string) int64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(parsed*100 + 0.5)
}

package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ugender2729/F1-Mart-sub001/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultCallTimeout = 3 * time.Second
	maxResponseBytes   = 1 << 20
)

type ClientConfig struct {
	BaseURL     string
	CallTimeout time.Duration
	// consecutive failures before the breaker opens
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPClient talks to the coupon service over REST.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// statusError is an HTTP answer the breaker should not count as a failure.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("coupon service returned %d: %s", e.status, e.body)
}

func NewHTTPClient(cfg ClientConfig, logger *slog.Logger) *HTTPClient {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "coupon-resolver",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			return err == nil || (errors.As(err, &se) && se.status < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.CallTimeout,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breaker: breaker,
		logger:  logger,
	}
}

func (c *HTTPClient) ApplicableCoupons(ctx context.Context, amount decimal.Decimal, cust Customer) ([]domain.Coupon, error) {
	q := customerQuery(cust)
	q.Set("amount", amount.String())

	var coupons []domain.Coupon
	if err := c.get(ctx, "/coupons/applicable", q, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}

func (c *HTTPClient) Lookup(ctx context.Context, code string) (*domain.Coupon, error) {
	var coupon domain.Coupon
	err := c.get(ctx, "/coupons/"+url.PathEscape(code), nil, &coupon)
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusNotFound {
		return nil, ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (c *HTTPClient) ApplyCoupon(ctx context.Context, code string, amount decimal.Decimal, cust Customer) (*domain.CouponApplication, error) {
	body := map[string]string{
		"code":   code,
		"amount": amount.String(),
		"email":  cust.Email,
		"phone":  cust.Phone,
	}
	var app domain.CouponApplication
	if err := c.post(ctx, "/coupons/apply", body, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *HTTPClient) FirstOrderCoupon(ctx context.Context, amount decimal.Decimal, cust Customer) (*domain.FirstOrderOffer, error) {
	q := customerQuery(cust)
	q.Set("amount", amount.String())

	var offer domain.FirstOrderOffer
	if err := c.get(ctx, "/coupons/first-order", q, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (c *HTTPClient) IsFirstTimeCustomer(ctx context.Context, cust Customer) (bool, error) {
	var resp struct {
		FirstTime bool `json:"first_time"`
	}
	if err := c.get(ctx, "/customers/first-time", customerQuery(cust), &resp); err != nil {
		return false, err
	}
	return resp.FirstTime, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, payload, out)
}

func (c *HTTPClient) do(ctx context.Context, method, u string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		}
		return data, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("coupon request %s %s: %w", method, u, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode coupon response: %w", err)
	}
	return nil
}

func customerQuery(cust Customer) url.Values {
	q := url.Values{}
	if cust.Email != "" {
		q.Set("email", cust.Email)
	}
	if cust.Phone != "" {
		q.Set("phone", cust.Phone)
	}
	return q
}

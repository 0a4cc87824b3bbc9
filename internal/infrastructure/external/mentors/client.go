package mentors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
	"github.com/dvmn-mentors/mentor-relay/pkg/circuitbreaker"
	"github.com/dvmn-mentors/mentor-relay/pkg/retry"
)

const errDomain = "mentoring"

// DefaultBaseURL is the production mentoring backend.
const DefaultBaseURL = "https://mentors.dvmn.org/api/v1"

// maxPages bounds pagination in case the backend loops `next`.
const maxPages = 50

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the backend client.
type ClientConfig struct {
	BaseURL  string
	Login    string
	Password string

	Timeout time.Duration

	// RequestsPerSecond and Burst feed the token bucket. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	Retry   retry.Policy
	Breaker circuitbreaker.Settings

	Logger *slog.Logger
}

// DefaultClientConfig returns defaults for the production backend.
func DefaultClientConfig(login, password string) ClientConfig {
	return ClientConfig{
		BaseURL:           DefaultBaseURL,
		Login:             login,
		Password:          password,
		Timeout:           15 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		Retry:             retry.DefaultPolicy(),
		Breaker: circuitbreaker.Settings{
			Name:             "mentors-api",
			FailureThreshold: 5,
			CoolDown:         30 * time.Second,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client talks to the mentoring backend. It implements mentoring.Backend.
type Client struct {
	config     ClientConfig
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	retry      retry.Policy
	mapper     *Mapper
}

var _ mentoring.Backend = (*Client)(nil)

// NewClient creates a new backend client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	logger := config.Logger.With("component", "mentors_client")

	breakerSettings := config.Breaker
	breakerSettings.Counts = shared.IsTransport
	if breakerSettings.OnChange == nil {
		breakerSettings.OnChange = func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
	}

	policy := config.Retry
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy()
	}
	if policy.Notify == nil {
		policy.Notify = func(attempt int, err error, wait time.Duration) {
			logger.Debug("retrying backend request", "attempt", attempt, "wait", wait, "error", err)
		}
	}

	return &Client{
		config:     config,
		baseURL:    base,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		limiter:    limiter,
		breaker:    circuitbreaker.New(breakerSettings),
		retry:      policy,
		mapper:     NewMapper(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ORDER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetOrder fetches an order with its student, notes and plan reference.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*mentoring.Order, error) {
	const op = "GetOrder"

	var dto OrderDTO
	if err := c.doRequest(ctx, op, http.MethodGet, "orders/"+url.PathEscape(orderID)+"/", nil, &dto); err != nil {
		return nil, err
	}

	order, err := c.mapper.OrderFromDTO(&dto)
	if err != nil {
		return nil, shared.NewResolutionError(errDomain, op, "malformed order "+orderID, err)
	}
	return order, nil
}

// GetMentorOrders fetches every order of a mentor, following `next` links.
func (c *Client) GetMentorOrders(ctx context.Context, mentorID string) ([]mentoring.Order, error) {
	const op = "GetMentorOrders"

	ref := "mentors/" + url.PathEscape(mentorID) + "/orders/"
	var orders []mentoring.Order

	for page := 0; ref != ""; page++ {
		if page >= maxPages {
			return nil, shared.NewResolutionError(errDomain, op, fmt.Sprintf("more than %d pages of orders", maxPages), nil)
		}

		var dto OrderPageDTO
		if err := c.doRequest(ctx, op, http.MethodGet, ref, nil, &dto); err != nil {
			return nil, err
		}

		mapped, err := c.mapper.OrdersFromDTOs(dto.Results)
		if err != nil {
			return nil, shared.NewResolutionError(errDomain, op, "malformed order listing", err)
		}
		orders = append(orders, mapped...)

		ref = ""
		if dto.Next != nil {
			ref = *dto.Next
		}
	}

	return orders, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY PLAN OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetWeeklyPlan fetches a weekly plan by ID.
func (c *Client) GetWeeklyPlan(ctx context.Context, planID string) (*mentoring.WeeklyPlan, error) {
	const op = "GetWeeklyPlan"

	var dto WeeklyPlanDTO
	if err := c.doRequest(ctx, op, http.MethodGet, "weekly-plans/"+url.PathEscape(planID)+"/", nil, &dto); err != nil {
		return nil, err
	}

	plan, err := c.mapper.WeeklyPlanFromDTO(&dto)
	if err != nil {
		return nil, shared.NewResolutionError(errDomain, op, "malformed weekly plan "+planID, err)
	}
	return plan, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// HideNote marks a note hidden. The PATCH is idempotent.
func (c *Client) HideNote(ctx context.Context, noteID string) error {
	return c.doRequest(ctx, "HideNote", http.MethodPatch, "notes/"+url.PathEscape(noteID)+"/", NotePatchDTO{IsHidden: true}, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// statusError is a non-2xx answer from the backend.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// decodeError is a 2xx answer whose body does not fit the DTO.
type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// doRequest performs a request with circuit breaking, rate limiting and retries,
// and translates the outcome into the error taxonomy.
func (c *Client) doRequest(ctx context.Context, op, method, ref string, body, result any) error {
	if err := c.breaker.Allow(); err != nil {
		return shared.NewTransportError(errDomain, op, "backend unavailable", err)
	}

	err := c.retry.Run(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		return c.doSingleRequest(ctx, method, ref, body, result)
	})

	err = c.translate(op, ref, err)
	c.breaker.Record(err)
	return err
}

// doSingleRequest performs one HTTP round trip. Retryable failures are marked
// with retry.Transient.
func (c *Client) doSingleRequest(ctx context.Context, method, ref string, body, result any) error {
	target, err := c.resolve(ref)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.config.Login, c.config.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend request", "method", method, "url", target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return retry.Transient(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return retry.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &statusError{Status: resp.StatusCode, Body: truncate(string(respBody), 200)}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.Transient(statusErr)
		}
		return statusErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return &decodeError{err: err}
		}
	}

	return nil
}

// resolve accepts both relative refs and the absolute `next` links the backend returns.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", &decodeError{err: fmt.Errorf("bad url %q: %w", ref, err)}
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// translate maps transport level failures onto the shared error kinds.
func (c *Client) translate(op, ref string, err error) error {
	if err == nil {
		return nil
	}

	var statusErr *statusError
	var decodeErr *decodeError
	var netErr net.Error

	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.Status == http.StatusNotFound:
			return shared.NewResolutionError(errDomain, op, ref+" not found", shared.ErrNotFound)
		case statusErr.Status == http.StatusUnauthorized, statusErr.Status == http.StatusForbidden:
			return shared.NewTransportError(errDomain, op, "backend rejected credentials", statusErr)
		case statusErr.Status == http.StatusTooManyRequests, statusErr.Status >= 500:
			return shared.NewTransportError(errDomain, op, "backend failure", statusErr)
		default:
			return shared.NewResolutionError(errDomain, op, "backend refused "+ref, statusErr)
		}
	case errors.As(err, &decodeErr):
		return shared.NewResolutionError(errDomain, op, "unexpected response for "+ref, decodeErr)
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return shared.NewTransportError(errDomain, op, "backend unreachable", err)
	default:
		return shared.NewTransportError(errDomain, op, "backend request failed", err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

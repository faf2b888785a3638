package ble

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type submitRequest struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	HeartRate int    `json:"heartRate"`
	Source    string `json:"source"`
	DeviceID  string `json:"deviceId"`
}

// apiResponse mirrors the data API's Result envelope.
type apiResponse struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	} `json:"result"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Token string `json:"token"`
	} `json:"result"`
}

// Credentials gateway account on bptrack-data. Sessions expire, so with
// credentials set the client logs in again when its token is rejected.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) set() bool { return c.Email != "" && c.Password != "" }

// APIClient bptrack-data client used by the gateway
type APIClient struct {
	httpClient *resty.Client
	creds      Credentials
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

var _ Submitter = (*APIClient)(nil)

func NewAPIClient(baseURL, token string, creds Credentials, logger *zap.Logger) *APIClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &APIClient{
		httpClient: client,
		creds:      creds,
		logger:     logger,
		token:      token,
	}
}

func (c *APIClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// login exchanges the gateway credentials for a fresh session token.
func (c *APIClient) login(ctx context.Context) error {
	var out loginResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: c.creds.Email, Password: c.creds.Password}).
		SetResult(&out).
		SetError(&out).
		Post("/api/v1/auth/login")
	if err != nil {
		return fmt.Errorf("failed to log in to bptrack API: %w", err)
	}
	if resp.IsError() || out.Result.Token == "" {
		msg := out.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.Error("bptrack API login rejected", zap.Int("status_code", resp.StatusCode()), zap.String("msg", msg))
		return fmt.Errorf("bptrack API login failed: %s (status: %d)", msg, resp.StatusCode())
	}

	c.mu.Lock()
	c.token = out.Result.Token
	c.mu.Unlock()
	c.logger.Info("Logged in to bptrack API", zap.String("email", c.creds.Email))
	return nil
}

func (c *APIClient) postReading(ctx context.Context, deviceID string, m Measurement, out *apiResponse) (*resty.Response, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetBody(submitRequest{
			Systolic:  m.Systolic,
			Diastolic: m.Diastolic,
			HeartRate: m.Pulse,
			Source:    "ble",
			DeviceID:  deviceID,
		}).
		SetResult(out).
		SetError(out)
	if token := c.currentToken(); token != "" {
		req.SetAuthToken(token)
	}
	return req.Post("/api/v1/bpstats")
}

func (c *APIClient) SubmitReading(ctx context.Context, deviceID string, m Measurement) error {
	if c.currentToken() == "" && c.creds.set() {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	var out apiResponse
	resp, err := c.postReading(ctx, deviceID, m, &out)
	if err == nil && resp.StatusCode() == http.StatusUnauthorized && c.creds.set() {
		c.logger.Warn("bptrack API token rejected, logging in again", zap.String("device_id", deviceID))
		if err := c.login(ctx); err != nil {
			return err
		}
		out = apiResponse{}
		resp, err = c.postReading(ctx, deviceID, m, &out)
	}
	if err != nil {
		c.logger.Error("bptrack API call failed", zap.String("device_id", deviceID), zap.Error(err))
		return fmt.Errorf("failed to call bptrack API: %w", err)
	}

	if resp.IsError() {
		msg := out.Message
		if msg == "" {
			msg = resp.Status()
		}
		c.logger.Error("bptrack API returned error",
			zap.String("device_id", deviceID),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", msg),
		)
		return fmt.Errorf("bptrack API error: %s (status: %d)", msg, resp.StatusCode())
	}

	c.logger.Info("Reading stored",
		zap.String("device_id", deviceID),
		zap.String("bpstat_id", out.Result.ID),
		zap.String("category", out.Result.Category),
	)
	return nil
}

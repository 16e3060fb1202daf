package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go-sysmonitor/pkg/models"
)

var (
	// ErrRateLimited 服务返回 429，本轮检查中止
	ErrRateLimited = errors.New("信誉服务限流")
	// ErrQuery 网络、状态码或响应解析错误，地址仍记为已检查
	ErrQuery = errors.New("信誉查询失败")
)

// Options 客户端参数
type Options struct {
	URL          string
	APIKey       string
	CanaryIP     string
	MaxAgeInDays int
	Verbose      bool
	Timeout      time.Duration
}

// Client AbuseIPDB check 接口客户端
type Client struct {
	opts Options
	HTTP *http.Client
}

func NewClient(opts Options) *Client {
	if opts.MaxAgeInDays <= 0 {
		opts.MaxAgeInDays = 90
	}
	return &Client{
		opts: opts,
		HTTP: &http.Client{Timeout: opts.Timeout},
	}
}

type checkResponse struct {
	Data struct {
		IsWhitelisted        *bool   `json:"isWhitelisted"`
		AbuseConfidenceScore *int    `json:"abuseConfidenceScore"`
		CountryName          *string `json:"countryName"`
	} `json:"data"`
}

// Check 查询单个地址的信誉
func (c *Client) Check(ctx context.Context, ip string) (models.Verdict, error) {
	v := models.Verdict{IP: ip}

	resp, err := c.do(ctx, ip)
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return v, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return v, fmt.Errorf("%w: 状态码 %d", ErrQuery, resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return v, fmt.Errorf("%w: 解析响应: %w", ErrQuery, err)
	}

	v.IsWhitelisted = body.Data.IsWhitelisted
	v.ConfidenceScore = body.Data.AbuseConfidenceScore
	if body.Data.CountryName != nil {
		v.Country = *body.Data.CountryName
	}
	return v, nil
}

// RateLimited 用金丝雀地址探测当前是否被限流
func (c *Client) RateLimited(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, c.opts.CanaryIP)
	if err != nil {
		return false, fmt.Errorf("%w: 限流探测: %w", ErrQuery, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

func (c *Client) do(ctx context.Context, ip string) (*http.Response, error) {
	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", strconv.Itoa(c.opts.MaxAgeInDays))
	if c.opts.Verbose {
		q.Set("verbose", "")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", c.opts.APIKey)
	return c.HTTP.Do(req)
}

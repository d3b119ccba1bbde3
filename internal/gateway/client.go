// Package gateway предоставляет клиентов внешнего фискального органа (SEFAZ).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Request описывает данные документа, передаваемые фискальному органу.
type Request struct {
	IssuerTaxID    string          `json:"issuer_tax_id"`
	Series         string          `json:"series"`
	Number         int64           `json:"number"`
	AccessKey      string          `json:"access_key,omitempty"`
	RecipientTaxID string          `json:"recipient_tax_id"`
	RecipientName  string          `json:"recipient_name"`
	Description    string          `json:"description"`
	Quantity       int             `json:"quantity"`
	UnitValue      decimal.Decimal `json:"unit_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	ICMSRate       decimal.Decimal `json:"icms_rate"`
	ICMSValue      decimal.Decimal `json:"icms_value"`
	IssueDate      string          `json:"issue_date"`
}

// Response описывает ответ фискального органа на запрос авторизации.
type Response struct {
	Success         bool      `json:"success"`
	Rejected        bool      `json:"rejected,omitempty"`
	AuthorityNumber string    `json:"authority_number,omitempty"`
	AccessKey       string    `json:"access_key,omitempty"`
	DocumentXML     string    `json:"document_xml,omitempty"`
	DocumentPDFURL  string    `json:"document_pdf_url,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Client инкапсулирует HTTP-взаимодействие с фискальным органом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к фискальному органу по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Authorize отправляет документ на авторизацию.
// Ошибка возвращается только при сбое транспорта или неожиданном ответе;
// отказ органа (422) возвращается как Response с Rejected=true.
func (c *Client) Authorize(ctx context.Context, r Request) (*Response, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("fiscal gateway client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/nfe/authorize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result Response
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &result, nil

	case http.StatusUnprocessableEntity:
		var result Response
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			result.Error = http.StatusText(resp.StatusCode)
		}
		result.Success = false
		result.Rejected = true
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		return &result, nil

	case http.StatusTooManyRequests:
		msg := "fiscal gateway rate limit exceeded"
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				msg = fmt.Sprintf("%s, retry after %s", msg, time.Duration(seconds)*time.Second)
			}
		}
		return &Response{Success: false, Error: msg, Timestamp: time.Now()}, nil

	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// Package sheet appends sale rows to a Google Sheets spreadsheet.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"club-pos/internal/ledger"
	"club-pos/internal/models"

	"golang.org/x/oauth2/google"
)

const (
	DefaultEndpoint = "https://sheets.googleapis.com"
	DefaultRange    = "Sales!A1"
	scope           = "https://www.googleapis.com/auth/spreadsheets"
)

type Config struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	Endpoint        string
}

type Sink struct {
	client        *http.Client
	endpoint      string
	spreadsheetID string
	valueRange    string
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// New authenticates with the service account key in cfg.CredentialsFile.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id not set")
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheet credentials: %w", err)
	}
	jwtConf, err := google.JWTConfigFromJSON(raw, scope)
	if err != nil {
		return nil, fmt.Errorf("parse sheet credentials: %w", err)
	}
	return NewWithClient(jwtConf.Client(ctx), cfg), nil
}

// NewWithClient uses an already authorized HTTP client.
func NewWithClient(client *http.Client, cfg Config) *Sink {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	valueRange := cfg.Range
	if valueRange == "" {
		valueRange = DefaultRange
	}
	return &Sink{
		client:        client,
		endpoint:      strings.TrimRight(endpoint, "/"),
		spreadsheetID: cfg.SpreadsheetID,
		valueRange:    valueRange,
	}
}

func (s *Sink) Name() string { return "sheet" }

func (s *Sink) Append(ctx context.Context, record models.SaleRecord) error {
	body, err := json.Marshal(appendRequest{Values: [][]string{ledger.Row(record)}})
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	appendURL := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		s.endpoint, url.PathEscape(s.spreadsheetID), url.PathEscape(s.valueRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, appendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sheets append: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

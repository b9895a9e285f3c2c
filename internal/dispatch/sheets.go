package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/example/webhook-router/internal/connector"
)

// SheetsHandler appends submissions as rows to a spreadsheet tab.
// Required settings: spreadsheet_id, sheet_name. The first write creates
// the header row; later writes align values to the existing headers and
// append columns for fields the sheet has not seen yet.
type SheetsHandler struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func (h *SheetsHandler) Dispatch(ctx context.Context, cfg connector.DestinationConfig, payload map[string]any, meta Meta) error {
	spreadsheetID := cfg.StringSetting("spreadsheet_id")
	if spreadsheetID == "" {
		return Configf("sheets destination missing spreadsheet_id")
	}
	sheetName := cfg.StringSetting("sheet_name")
	if sheetName == "" {
		return Configf("sheets destination missing sheet_name")
	}

	headers, err := h.readHeaders(ctx, spreadsheetID, sheetName)
	if err != nil {
		return err
	}

	headers, changed := reconcileHeaders(headers, payload)
	if changed {
		if err := h.writeHeaders(ctx, spreadsheetID, sheetName, headers); err != nil {
			return err
		}
	}

	row := make([]any, len(headers))
	for i, header := range headers {
		if v, ok := payload[header]; ok {
			row[i] = formatValue(v)
		} else {
			row[i] = ""
		}
	}
	return h.appendRow(ctx, spreadsheetID, sheetName, row)
}

// reconcileHeaders matches payload fields to the existing header row by
// name; unseen fields extend the headers in sorted order.
func reconcileHeaders(headers []string, payload map[string]any) ([]string, bool) {
	known := make(map[string]bool, len(headers))
	for _, header := range headers {
		known[header] = true
	}
	changed := false
	for _, key := range sortedKeys(payload) {
		if !known[key] {
			headers = append(headers, key)
			changed = true
		}
	}
	return headers, changed
}

func (h *SheetsHandler) readHeaders(ctx context.Context, spreadsheetID, sheetName string) ([]string, error) {
	resp, err := h.do(ctx, http.MethodGet, h.valuesURL(spreadsheetID, sheetName+"!1:1"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classifyStatus("sheets provider", resp); err != nil {
		return nil, err
	}

	var parsed struct {
		Values [][]any `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode header row: %w", err)
	}
	if len(parsed.Values) == 0 {
		return nil, nil
	}
	headers := make([]string, 0, len(parsed.Values[0]))
	for _, cell := range parsed.Values[0] {
		headers = append(headers, formatValue(cell))
	}
	return headers, nil
}

func (h *SheetsHandler) writeHeaders(ctx context.Context, spreadsheetID, sheetName string, headers []string) error {
	row := make([]any, len(headers))
	for i, header := range headers {
		row[i] = header
	}
	body, err := json.Marshal(map[string]any{"values": [][]any{row}})
	if err != nil {
		return err
	}
	resp, err := h.do(ctx, http.MethodPut, h.valuesURL(spreadsheetID, sheetName+"!1:1")+"?valueInputOption=RAW", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return classifyStatus("sheets provider", resp)
}

func (h *SheetsHandler) appendRow(ctx context.Context, spreadsheetID, sheetName string, row []any) error {
	body, err := json.Marshal(map[string]any{"values": [][]any{row}})
	if err != nil {
		return err
	}
	resp, err := h.do(ctx, http.MethodPost, h.valuesURL(spreadsheetID, sheetName)+":append?valueInputOption=RAW", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return classifyStatus("sheets provider", resp)
}

func (h *SheetsHandler) valuesURL(spreadsheetID, sheetRange string) string {
	return fmt.Sprintf("%s/spreadsheets/%s/values/%s", h.Endpoint, spreadsheetID, url.PathEscape(sheetRange))
}

func (h *SheetsHandler) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+h.Token)

	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets request: %w", err)
	}
	return resp, nil
}

func (h *SheetsHandler) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

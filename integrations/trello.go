package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adlio/trello"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://trello.com/1"
	DefaultTimeout = 5 * time.Second
	DefaultMember  = "me"
)

type TrelloClient struct {
	Client   *http.Client
	APIKey   string
	APIToken string
	BaseURL  string
	Timeout  time.Duration
}

type ClientOption func(*TrelloClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(tc *TrelloClient) {
		if baseURL != "" {
			tc.BaseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(tc *TrelloClient) {
		if client != nil {
			tc.Client = client
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(tc *TrelloClient) {
		if timeout > 0 {
			tc.Timeout = timeout
		}
	}
}

func NewTrelloClient(key, token string, opts ...ClientOption) *TrelloClient {
	tc := &TrelloClient{
		APIKey:   key,
		APIToken: token,
		BaseURL:  DefaultBaseURL,
		Timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.Client == nil {
		tc.Client = &http.Client{Timeout: tc.Timeout}
	}
	return tc
}

// request sends an authenticated call to the Trello API. key and token are
// added to the query string unless params already carries them.
func (tc *TrelloClient) request(ctx context.Context, method, path string, params url.Values, data any, out any) error {
	path = strings.TrimLeft(path, "/")
	endpoint := endpointLabel(path)

	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				query.Add(k, v)
			}
		}
	}
	if query.Get("key") == "" {
		query.Set("key", tc.APIKey)
	}
	if query.Get("token") == "" {
		query.Set("token", tc.APIToken)
	}

	apiURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(tc.BaseURL, "/"), path, query.Encode())

	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return &APIError{Method: method, Path: path, Err: fmt.Errorf("%w: failed to encode request: %v", ErrUnknownFailure, err)}
		}
		body = bytes.NewReader(payload)
	}

	if tc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tc.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return &APIError{Method: method, Path: path, Err: fmt.Errorf("%w: failed to create request: %v", ErrUnknownFailure, err)}
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := tc.Client.Do(req)
	if err != nil {
		observeRequest(method, endpoint, "error", start)
		zap.L().Debug("Trello request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &APIError{Method: method, Path: path, Err: fmt.Errorf("%w: failed to send request: %v", ErrUnknownFailure, err)}
	}
	defer resp.Body.Close()
	observeRequest(method, endpoint, fmt.Sprintf("%d", resp.StatusCode), start)

	zap.L().Debug("Trello request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: failed to read response: %v", ErrUnknownFailure, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(method, path, resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: failed to decode Trello response: %v", ErrUnknownFailure, err)}
	}
	return nil
}

func fieldParams(fields string) url.Values {
	params := url.Values{}
	if fields != "" {
		params.Set("fields", fields)
	}
	return params
}

func (tc *TrelloClient) GetMemberOrganizations(ctx context.Context, memberIDOrUsername, fields string) ([]trello.Organization, error) {
	var orgs []trello.Organization
	path := fmt.Sprintf("/members/%s/organizations", url.PathEscape(memberIDOrUsername))
	if err := tc.request(ctx, http.MethodGet, path, fieldParams(fields), nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (tc *TrelloClient) GetOrganizationBoards(ctx context.Context, orgIDOrName, fields string) ([]trello.Board, error) {
	var boards []trello.Board
	path := fmt.Sprintf("/organizations/%s/boards", url.PathEscape(orgIDOrName))
	if err := tc.request(ctx, http.MethodGet, path, fieldParams(fields), nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

func (tc *TrelloClient) GetBoardLists(ctx context.Context, boardID, fields string) ([]trello.List, error) {
	var lists []trello.List
	path := fmt.Sprintf("/boards/%s/lists", url.PathEscape(boardID))
	if err := tc.request(ctx, http.MethodGet, path, fieldParams(fields), nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

type newCardRequest struct {
	Name   string `json:"name"`
	IDList string `json:"idList"`
	Desc   string `json:"desc"`
}

func (tc *TrelloClient) NewCard(ctx context.Context, name, idList, desc string) (*trello.Card, error) {
	var card trello.Card
	data := newCardRequest{Name: name, IDList: idList, Desc: desc}
	if err := tc.request(ctx, http.MethodPost, "/cards", nil, data, &card); err != nil {
		return nil, err
	}
	zap.L().Info("Created Trello card", zap.String("cardID", card.ID), zap.String("listID", idList))
	return &card, nil
}

// endpointLabel collapses ids out of a path so metrics stay low-cardinality:
// "boards/abc/lists" becomes "boards/lists".
func endpointLabel(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return parts[0]
	}
	return parts[0] + "/" + parts[2]
}

package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/chxlky/sentry-trello/integrations"
)

type memoryStore struct {
	mu      sync.Mutex
	options map[string]string
	meta    map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{options: map[string]string{}, meta: map[string]string{}}
}

func (s *memoryStore) GetOption(_ context.Context, projectID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[projectID+"/"+key], nil
}

func (s *memoryStore) SetOption(_ context.Context, projectID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.options, projectID+"/"+key)
		return nil
	}
	s.options[projectID+"/"+key] = value
	return nil
}

func (s *memoryStore) GetGroupMeta(_ context.Context, groupID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[groupID+"/"+key], nil
}

func (s *memoryStore) SetGroupMeta(_ context.Context, groupID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.meta, groupID+"/"+key)
		return nil
	}
	s.meta[groupID+"/"+key] = value
	return nil
}

// fakeTrello mirrors the responses the plugin relies on.
type fakeTrello struct {
	mu       sync.Mutex
	status   int
	lastCard map[string]string
	lastURL  *url.URL
}

func (f *fakeTrello) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = r.URL
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/1/members/me/organizations":
		w.Write([]byte(`[{"id":"3","name":"Bar"}]`))
	case r.Method == http.MethodGet && r.URL.Path == "/1/organizations/3/boards":
		w.Write([]byte(`[{"id":"1","name":"Foo"}]`))
	case r.Method == http.MethodGet && r.URL.Path == "/1/boards/1/lists":
		w.Write([]byte(`[{"id":"15","name":"Todo"}]`))
	case r.Method == http.MethodPost && r.URL.Path == "/1/cards":
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &f.lastCard)
		w.Write([]byte(`{"id":"2","url":"https://example.trello.com/cards/2"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupPlugin(t *testing.T) (*TrelloCard, *memoryStore, *fakeTrello) {
	t.Helper()
	fake := &fakeTrello{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store := newMemoryStore()
	p := NewTrelloCard(store, func(key, token string) *integrations.TrelloClient {
		return integrations.NewTrelloClient(key, token, integrations.WithBaseURL(srv.URL+"/1"))
	})
	return p, store, fake
}

func configure(store *memoryStore, projectID string, values map[string]string) {
	for k, v := range values {
		store.SetOption(context.Background(), projectID, "trello:"+k, v)
	}
}

var testGroup = Group{
	ID:        "g1",
	ProjectID: "p1",
	Message:   "Hello world",
	Culprit:   "foo.bar",
	Permalink: "http://example.com/groups/g1/",
}

var testEvent = Event{ID: "e1", Message: "Hello world", Body: "Traceback\n  line 1"}

func TestMetadata(t *testing.T) {
	p, _, _ := setupPlugin(t)
	if p.Slug() != "trello" || p.ConfKey() != "trello" || p.Title() != "Trello" {
		t.Errorf("unexpected metadata: %s %s %s", p.Slug(), p.ConfKey(), p.Title())
	}
	if p.GetNewIssueTitle() != "Create Trello Card" {
		t.Errorf("unexpected new issue title %q", p.GetNewIssueTitle())
	}
	if len(p.ResourceLinks()) != 3 {
		t.Errorf("expected 3 resource links, got %d", len(p.ResourceLinks()))
	}
}

func TestIsConfigured(t *testing.T) {
	p, store, _ := setupPlugin(t)
	ctx := context.Background()

	configure(store, "p1", map[string]string{"key": "foo", "token": "bar"})
	ok, err := p.IsConfigured(ctx, "p1")
	if err != nil || ok {
		t.Fatalf("IsConfigured = %v, %v; want false without organization", ok, err)
	}

	configure(store, "p1", map[string]string{"organization": "3"})
	ok, err = p.IsConfigured(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("IsConfigured = %v, %v; want true", ok, err)
	}
}

func TestProjectConfFormWithoutKey(t *testing.T) {
	p, _, _ := setupPlugin(t)

	form, err := p.ProjectConfForm(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ProjectConfForm failed: %v", err)
	}
	org := form.Field("organization")
	if !org.Disabled || org.Required || org.HelpText != helpSaveCredentials {
		t.Errorf("organization should be disabled: %+v", org)
	}
	if form.Field("key") == nil || form.Field("token") == nil {
		t.Error("expected key and token fields")
	}
}

func TestProjectConfFormWithCredentials(t *testing.T) {
	p, store, _ := setupPlugin(t)
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar"})

	form, err := p.ProjectConfForm(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ProjectConfForm failed: %v", err)
	}
	org := form.Field("organization")
	if org.Disabled || !org.Required {
		t.Errorf("organization should be enabled and required: %+v", org)
	}
	if len(org.Choices) != 2 || org.Choices[0].Value != "" || org.Choices[1].Value != "3" {
		t.Errorf("unexpected choices: %+v", org.Choices)
	}
}

func TestProjectConfFormWithBadCredentials(t *testing.T) {
	p, store, fake := setupPlugin(t)
	fake.status = http.StatusUnauthorized
	configure(store, "p1", map[string]string{"key": "foo", "token": "bad"})

	form, err := p.ProjectConfForm(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ProjectConfForm failed: %v", err)
	}
	if org := form.Field("organization"); !org.Disabled {
		t.Errorf("organization should be disabled after a failed lookup: %+v", org)
	}
}

func TestSaveConfig(t *testing.T) {
	p, store, _ := setupPlugin(t)
	ctx := context.Background()

	err := p.SaveConfig(ctx, "p1", map[string]string{"trello-token": "foo", "trello-key": "bar"})
	if err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if v, _ := store.GetOption(ctx, "p1", "trello:token"); v != "foo" {
		t.Errorf("token = %q", v)
	}
	if v, _ := store.GetOption(ctx, "p1", "trello:key"); v != "bar" {
		t.Errorf("key = %q", v)
	}

	// The organization select is now enabled and required.
	err = p.SaveConfig(ctx, "p1", map[string]string{"key": "bar", "token": "foo"})
	var fe FormErrors
	if !errors.As(err, &fe) || fe["organization"] != errRequired {
		t.Fatalf("expected organization to be required, got %v", err)
	}

	err = p.SaveConfig(ctx, "p1", map[string]string{"key": "bar", "token": "foo", "organization": "nope"})
	if !errors.As(err, &fe) || !strings.Contains(fe["organization"], "valid choice") {
		t.Fatalf("expected invalid choice, got %v", err)
	}

	if err := p.SaveConfig(ctx, "p1", map[string]string{"key": "bar", "token": "foo", "organization": "3"}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if v, _ := store.GetOption(ctx, "p1", "trello:organization"); v != "3" {
		t.Errorf("organization = %q", v)
	}
}

func TestSaveConfigMissingCredentials(t *testing.T) {
	p, _, _ := setupPlugin(t)

	err := p.SaveConfig(context.Background(), "p1", map[string]string{"key": "bar"})
	var fe FormErrors
	if !errors.As(err, &fe) || fe["token"] != errRequired {
		t.Fatalf("expected token required, got %v", err)
	}
	if _, ok := fe["key"]; ok {
		t.Error("key should be valid")
	}
}

func TestGetInitialFormData(t *testing.T) {
	p, store, _ := setupPlugin(t)
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar", "organization": "3", "board_list": "15"})

	initial, err := p.GetInitialFormData(context.Background(), testGroup, testEvent)
	if err != nil {
		t.Fatalf("GetInitialFormData failed: %v", err)
	}
	if initial.Title != "Hello world" || initial.BoardList != "15" {
		t.Errorf("unexpected initial data: %+v", initial)
	}
	if !strings.HasPrefix(initial.Description, testGroup.Permalink) {
		t.Errorf("description should start with the permalink: %q", initial.Description)
	}
	if len(initial.TrelloList) != 1 || initial.TrelloList[0].Label != "Foo" || initial.TrelloList[0].Options[0].Value != "15" {
		t.Errorf("unexpected trello_list: %+v", initial.TrelloList)
	}
}

func TestGetInitialFormDataFetchError(t *testing.T) {
	p, store, fake := setupPlugin(t)
	fake.status = http.StatusUnauthorized
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar", "organization": "3"})

	_, err := p.GetInitialFormData(context.Background(), testGroup, testEvent)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	want := "Error adding Trello card: Invalid Trello credentials: check the API key and token"
	if ve.Message != want {
		t.Errorf("message = %q, want %q", ve.Message, want)
	}
}

func TestCreateIssue(t *testing.T) {
	p, store, fake := setupPlugin(t)
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar"})

	issueID, err := p.CreateIssue(context.Background(), testGroup, map[string]string{
		"title":       "foo",
		"description": "A ticket description",
		"board_list":  "15",
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if issueID != "2/https://example.trello.com/cards/2" {
		t.Errorf("issue id = %q", issueID)
	}
	if fake.lastURL.RawQuery != "key=foo&token=bar" {
		t.Errorf("query = %q", fake.lastURL.RawQuery)
	}
	if fake.lastCard["idList"] != "15" || fake.lastCard["name"] != "foo" || fake.lastCard["desc"] != "A ticket description" {
		t.Errorf("unexpected card body: %+v", fake.lastCard)
	}
}

func TestCreateIssueUnknownFailure(t *testing.T) {
	p, store, fake := setupPlugin(t)
	fake.status = http.StatusInternalServerError
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar"})

	_, err := p.CreateIssue(context.Background(), testGroup, map[string]string{"title": "foo", "board_list": "15"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "Error adding Trello card: Unknown error communicating with the Trello API" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestIssueLabelAndURL(t *testing.T) {
	p, _, _ := setupPlugin(t)
	issueID := "2/https://example.trello.com/cards/2"
	if got := p.GetIssueLabel(issueID); got != "Trello-2" {
		t.Errorf("label = %q", got)
	}
	if got := p.GetIssueURL(issueID); got != "https://example.trello.com/cards/2" {
		t.Errorf("url = %q", got)
	}
	if got := p.GetIssueURL("2"); got != "" {
		t.Errorf("url without separator = %q", got)
	}
}

func TestActionLinksIssue(t *testing.T) {
	p, store, _ := setupPlugin(t)
	ctx := context.Background()
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar", "organization": "3"})

	result, err := p.Action(ctx, testGroup, testEvent, map[string]string{
		"title":       "foo",
		"description": "A ticket description",
		"board_list":  "15",
	})
	if err != nil {
		t.Fatalf("Action failed: %v", err)
	}
	if result.Label != "Trello-2" || result.URL != "https://example.trello.com/cards/2" {
		t.Errorf("unexpected result: %+v", result)
	}
	if v, _ := store.GetGroupMeta(ctx, "g1", "trello:tid"); v != "2/https://example.trello.com/cards/2" {
		t.Errorf("group meta = %q", v)
	}

	_, err = p.Action(ctx, testGroup, testEvent, map[string]string{"title": "again", "description": "x", "board_list": "15"})
	if !IsValidationError(err) {
		t.Fatalf("expected already-linked validation error, got %v", err)
	}

	if err := p.UnlinkIssue(ctx, testGroup); err != nil {
		t.Fatalf("UnlinkIssue failed: %v", err)
	}
	if linked, _ := p.LinkedIssue(ctx, testGroup); linked != nil {
		t.Errorf("expected no linked issue, got %+v", linked)
	}
}

func TestActionRejectsUnknownList(t *testing.T) {
	p, store, _ := setupPlugin(t)
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar", "organization": "3"})

	_, err := p.Action(context.Background(), testGroup, testEvent, map[string]string{
		"title":       "foo",
		"description": "A ticket description",
		"board_list":  "99",
	})
	var fe FormErrors
	if !errors.As(err, &fe) || fe["board_list"] == "" {
		t.Fatalf("expected board_list error, got %v", err)
	}
}

func TestViewOptions(t *testing.T) {
	p, store, _ := setupPlugin(t)
	ctx := context.Background()
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar", "organization": "3"})

	orgs, err := p.ViewOptions(ctx, "p1", "organization", nil)
	if err != nil {
		t.Fatalf("organization options failed: %v", err)
	}
	if got := orgs.([]integrations.Option); len(got) != 1 || got[0].Label != "Bar" {
		t.Errorf("unexpected organizations: %+v", got)
	}

	lists, err := p.ViewOptions(ctx, "p1", "board_list", url.Values{"board": {"1"}})
	if err != nil {
		t.Fatalf("board_list options failed: %v", err)
	}
	if got := lists.([]integrations.Option); len(got) != 1 || got[0].Value != "15" {
		t.Errorf("unexpected lists: %+v", got)
	}

	boards, err := p.ViewOptions(ctx, "p1", "trello_list", url.Values{})
	if err != nil {
		t.Fatalf("trello_list options failed: %v", err)
	}
	if got := boards.([]integrations.OptionGroup); len(got) != 1 || got[0].Label != "Foo" {
		t.Errorf("unexpected boards: %+v", got)
	}

	if _, err := p.ViewOptions(ctx, "p1", "board_list", url.Values{}); !IsValidationError(err) {
		t.Errorf("expected missing board error, got %v", err)
	}
	if _, err := p.ViewOptions(ctx, "p1", "bogus", nil); !IsValidationError(err) {
		t.Errorf("expected unknown field error, got %v", err)
	}
}

func TestViewOptionsMapsUnauthorized(t *testing.T) {
	p, store, fake := setupPlugin(t)
	fake.status = http.StatusUnauthorized
	configure(store, "p1", map[string]string{"key": "foo", "token": "bar"})

	_, err := p.ViewOptions(context.Background(), "p1", "organization", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != integrations.ErrorMessage(integrations.ErrInvalidCredentials) {
		t.Fatalf("unexpected error %v", err)
	}
}

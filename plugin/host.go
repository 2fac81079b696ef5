package plugin

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// OptionStore persists plugin settings per project and plugin state per
// group. Keys arrive already namespaced by the plugin's conf key. Setting an
// empty value clears the entry.
type OptionStore interface {
	GetOption(ctx context.Context, projectID, key string) (string, error)
	SetOption(ctx context.Context, projectID, key, value string) error
	GetGroupMeta(ctx context.Context, groupID, key string) (string, error)
	SetGroupMeta(ctx context.Context, groupID, key, value string) error
}

// Group is an aggregated error as seen by issue plugins.
type Group struct {
	ID        string
	ProjectID string
	Message   string
	Culprit   string
	// Permalink is the absolute URL of the group in the host UI.
	Permalink string
}

// Event is the representative event of a group.
type Event struct {
	ID      string
	Message string
	Body    string
}

// ResourceLink is a titled link shown on the plugin's settings page.
type ResourceLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// IssueResult describes an issue linked to a group.
type IssueResult struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ValidationError is an error meant to be shown to the user next to a form
// field. An empty Field means the error applies to the whole form.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FormErrors collects per-field validation failures.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// IssuePlugin is the capability set a host needs to link groups to an
// external issue tracker.
type IssuePlugin interface {
	Slug() string
	Title() string
	ConfKey() string
	Description() string
	Version() string
	Author() string
	AuthorURL() string
	ResourceLinks() []ResourceLink

	IsConfigured(ctx context.Context, projectID string) (bool, error)
	ProjectConfForm(ctx context.Context, projectID string) (*Form, error)
	SaveConfig(ctx context.Context, projectID string, values map[string]string) error

	GetInitialFormData(ctx context.Context, group Group, event Event) (*InitialData, error)
	NewIssueForm(initial *InitialData) *Form
	CreateIssue(ctx context.Context, group Group, formData map[string]string) (string, error)
	GetNewIssueTitle() string
	GetIssueLabel(issueID string) string
	GetIssueURL(issueID string) string

	Action(ctx context.Context, group Group, event Event, formData map[string]string) (*IssueResult, error)
	LinkedIssue(ctx context.Context, group Group) (*IssueResult, error)
	UnlinkIssue(ctx context.Context, group Group) error
	ViewOptions(ctx context.Context, projectID, field string, query url.Values) (any, error)
}

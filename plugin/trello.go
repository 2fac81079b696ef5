package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/chxlky/sentry-trello/integrations"
	"go.uber.org/zap"
)

const (
	trelloSlug    = "trello"
	trelloConfKey = "trello"
	trelloVersion = "0.1.0"

	maxTitleLength        = 200
	maxBoardListLength    = 50
	maxOrganizationLength = 50

	helpSaveCredentials = "Set correct key and token and save before"
)

// ClientFactory builds a Trello client for a set of project credentials.
type ClientFactory func(key, token string) *integrations.TrelloClient

// TrelloCard files Trello cards from error groups.
type TrelloCard struct {
	store     OptionStore
	newClient ClientFactory
}

var _ IssuePlugin = (*TrelloCard)(nil)

func NewTrelloCard(store OptionStore, newClient ClientFactory) *TrelloCard {
	if newClient == nil {
		newClient = func(key, token string) *integrations.TrelloClient {
			return integrations.NewTrelloClient(key, token)
		}
	}
	return &TrelloCard{store: store, newClient: newClient}
}

func (p *TrelloCard) Slug() string        { return trelloSlug }
func (p *TrelloCard) Title() string       { return "Trello" }
func (p *TrelloCard) ConfKey() string     { return trelloConfKey }
func (p *TrelloCard) Description() string { return "Create Trello cards on exceptions." }
func (p *TrelloCard) Version() string     { return trelloVersion }
func (p *TrelloCard) Author() string      { return "chxlky" }
func (p *TrelloCard) AuthorURL() string   { return "https://github.com/chxlky" }

func (p *TrelloCard) ResourceLinks() []ResourceLink {
	return []ResourceLink{
		{Title: "How do I configure this?", URL: "https://github.com/chxlky/sentry-trello/blob/main/README.md"},
		{Title: "Bug Tracker", URL: "https://github.com/chxlky/sentry-trello/issues"},
		{Title: "Source", URL: "https://github.com/chxlky/sentry-trello"},
	}
}

func (p *TrelloCard) GetNewIssueTitle() string { return "Create Trello Card" }

func (p *TrelloCard) optionKey(name string) string {
	return p.ConfKey() + ":" + name
}

func (p *TrelloCard) issueMetaKey() string {
	return p.ConfKey() + ":tid"
}

func (p *TrelloCard) getOption(ctx context.Context, projectID, name string) (string, error) {
	v, err := p.store.GetOption(ctx, projectID, p.optionKey(name))
	if err != nil {
		return "", fmt.Errorf("failed to read option %s: %w", name, err)
	}
	return v, nil
}

func (p *TrelloCard) IsConfigured(ctx context.Context, projectID string) (bool, error) {
	for _, name := range []string{"key", "token", "organization"} {
		v, err := p.getOption(ctx, projectID, name)
		if err != nil {
			return false, err
		}
		if v == "" {
			return false, nil
		}
	}
	return true, nil
}

func (p *TrelloCard) GetClient(ctx context.Context, projectID string) (*integrations.TrelloClient, error) {
	key, err := p.getOption(ctx, projectID, "key")
	if err != nil {
		return nil, err
	}
	token, err := p.getOption(ctx, projectID, "token")
	if err != nil {
		return nil, err
	}
	return p.newClient(key, token), nil
}

// ProjectConfForm returns the settings form for a project. The organization
// select is only enabled once the stored credentials can list organizations.
func (p *TrelloCard) ProjectConfForm(ctx context.Context, projectID string) (*Form, error) {
	key, err := p.getOption(ctx, projectID, "key")
	if err != nil {
		return nil, err
	}
	token, err := p.getOption(ctx, projectID, "token")
	if err != nil {
		return nil, err
	}
	organization, err := p.getOption(ctx, projectID, "organization")
	if err != nil {
		return nil, err
	}

	orgField := Field{
		Name:      "organization",
		Label:     "Organization to add a card to",
		Widget:    WidgetSelect,
		MaxLength: maxOrganizationLength,
		Initial:   organization,
		Disabled:  true,
		HelpText:  helpSaveCredentials,
	}

	if key != "" {
		orgs, err := p.newClient(key, token).OrganizationsToOptions(ctx, integrations.DefaultMember)
		if err != nil {
			zap.L().Warn("Could not list Trello organizations", zap.String("projectID", projectID), zap.Error(err))
		} else {
			orgField.Disabled = false
			orgField.HelpText = ""
			orgField.Required = true
			orgField.Choices = append([]integrations.Option{{}}, orgs...)
		}
	}

	return &Form{
		Prefix: p.ConfKey(),
		Fields: []Field{
			{Name: "key", Label: "Trello API Key", Widget: WidgetText, Required: true, Initial: key},
			{Name: "token", Label: "Trello API Token", Widget: WidgetPassword, Required: true},
			orgField,
		},
	}, nil
}

// SaveConfig validates values against the current settings form and stores
// every enabled field.
func (p *TrelloCard) SaveConfig(ctx context.Context, projectID string, values map[string]string) error {
	form, err := p.ProjectConfForm(ctx, projectID)
	if err != nil {
		return err
	}
	cleaned, err := form.Clean(values)
	if err != nil {
		return err
	}
	for _, field := range form.Fields {
		value, ok := cleaned[field.Name]
		if !ok {
			continue
		}
		if err := p.store.SetOption(ctx, projectID, p.optionKey(field.Name), value); err != nil {
			return fmt.Errorf("failed to save option %s: %w", field.Name, err)
		}
	}
	zap.L().Info("Saved Trello plugin settings", zap.String("projectID", projectID))
	return nil
}

// InitialData seeds the new-issue form.
type InitialData struct {
	Title       string                     `json:"title"`
	Description string                     `json:"description"`
	BoardList   string                     `json:"board_list"`
	TrelloList  []integrations.OptionGroup `json:"trello_list"`
}

func (p *TrelloCard) GetInitialFormData(ctx context.Context, group Group, event Event) (*InitialData, error) {
	trello, err := p.GetClient(ctx, group.ProjectID)
	if err != nil {
		return nil, err
	}
	organization, err := p.getOption(ctx, group.ProjectID, "organization")
	if err != nil {
		return nil, err
	}
	boardList, err := p.getOption(ctx, group.ProjectID, "board_list")
	if err != nil {
		return nil, err
	}

	boards, err := trello.BoardsToOptions(ctx, organization)
	if err != nil {
		return nil, cardError(err)
	}

	return &InitialData{
		Title:       truncate(group.Message, maxTitleLength),
		Description: GroupDescription(group, event),
		BoardList:   boardList,
		TrelloList:  boards,
	}, nil
}

func (p *TrelloCard) NewIssueForm(initial *InitialData) *Form {
	if initial == nil {
		initial = &InitialData{}
	}
	return &Form{
		Fields: []Field{
			{Name: "title", Label: "Title", Widget: WidgetText, Required: true, MaxLength: maxTitleLength, Initial: initial.Title},
			{Name: "description", Label: "Description", Widget: WidgetTextarea, Required: true, Initial: initial.Description},
			{Name: "board_list", Label: "Trello List", Widget: WidgetSelect, Required: true, MaxLength: maxBoardListLength,
				Initial: initial.BoardList, ChoiceGroups: initial.TrelloList},
		},
	}
}

func (p *TrelloCard) CreateIssue(ctx context.Context, group Group, formData map[string]string) (string, error) {
	trello, err := p.GetClient(ctx, group.ProjectID)
	if err != nil {
		return "", err
	}
	card, err := trello.NewCard(ctx, formData["title"], formData["board_list"], formData["description"])
	if err != nil {
		return "", cardError(err)
	}
	return card.ID + "/" + card.URL, nil
}

// GetIssueLabel renders "Trello-<card id>" from an issue id of the form
// "<card id>/<card url>".
func (p *TrelloCard) GetIssueLabel(issueID string) string {
	id, _, _ := strings.Cut(issueID, "/")
	return "Trello-" + id
}

func (p *TrelloCard) GetIssueURL(issueID string) string {
	_, u, _ := strings.Cut(issueID, "/")
	return u
}

func (p *TrelloCard) issueResult(issueID string) *IssueResult {
	return &IssueResult{ID: issueID, Label: p.GetIssueLabel(issueID), URL: p.GetIssueURL(issueID)}
}

// Action runs the full create flow: validate the form against freshly
// fetched choices, create the card and link it to the group.
func (p *TrelloCard) Action(ctx context.Context, group Group, event Event, formData map[string]string) (*IssueResult, error) {
	linked, err := p.LinkedIssue(ctx, group)
	if err != nil {
		return nil, err
	}
	if linked != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("This group is already linked to %s", linked.Label)}
	}

	initial, err := p.GetInitialFormData(ctx, group, event)
	if err != nil {
		return nil, err
	}
	cleaned, err := p.NewIssueForm(initial).Clean(formData)
	if err != nil {
		return nil, err
	}

	issueID, err := p.CreateIssue(ctx, group, cleaned)
	if err != nil {
		return nil, err
	}
	if err := p.store.SetGroupMeta(ctx, group.ID, p.issueMetaKey(), issueID); err != nil {
		return nil, fmt.Errorf("failed to link issue to group %s: %w", group.ID, err)
	}

	zap.L().Info("Linked Trello card to group", zap.String("groupID", group.ID), zap.String("issueID", issueID))
	return p.issueResult(issueID), nil
}

func (p *TrelloCard) LinkedIssue(ctx context.Context, group Group) (*IssueResult, error) {
	issueID, err := p.store.GetGroupMeta(ctx, group.ID, p.issueMetaKey())
	if err != nil {
		return nil, fmt.Errorf("failed to read linked issue for group %s: %w", group.ID, err)
	}
	if issueID == "" {
		return nil, nil
	}
	return p.issueResult(issueID), nil
}

func (p *TrelloCard) UnlinkIssue(ctx context.Context, group Group) error {
	if err := p.store.SetGroupMeta(ctx, group.ID, p.issueMetaKey(), ""); err != nil {
		return fmt.Errorf("failed to unlink issue from group %s: %w", group.ID, err)
	}
	return nil
}

// ViewOptions serves the cascading select lists fetched by the settings and
// new-issue forms.
func (p *TrelloCard) ViewOptions(ctx context.Context, projectID, field string, query url.Values) (any, error) {
	trello, err := p.GetClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	switch field {
	case "organization":
		orgs, err := trello.OrganizationsToOptions(ctx, integrations.DefaultMember)
		if err != nil {
			return nil, optionsError(field, err)
		}
		return orgs, nil
	case "board_list":
		board := query.Get("board")
		if board == "" {
			return nil, &ValidationError{Field: "board", Message: errRequired}
		}
		lists, err := trello.ListsToOptions(ctx, board)
		if err != nil {
			return nil, optionsError(field, err)
		}
		return lists, nil
	case "trello_list":
		organization := query.Get("organization")
		if organization == "" {
			organization, err = p.getOption(ctx, projectID, "organization")
			if err != nil {
				return nil, err
			}
		}
		if organization == "" {
			return nil, &ValidationError{Field: "organization", Message: errRequired}
		}
		boards, err := trello.BoardsToOptions(ctx, organization)
		if err != nil {
			return nil, optionsError(field, err)
		}
		return boards, nil
	default:
		return nil, &ValidationError{Field: "field", Message: fmt.Sprintf("Unknown field %q", field)}
	}
}

// cardError converts a client failure into the error shown on the
// new-issue form.
func cardError(err error) error {
	zap.L().Warn("Trello API call failed", zap.Error(err))
	return &ValidationError{Message: "Error adding Trello card: " + integrations.ErrorMessage(err)}
}

func optionsError(field string, err error) error {
	zap.L().Warn("Could not fetch Trello options", zap.String("field", field), zap.Error(err))
	return &ValidationError{Field: field, Message: integrations.ErrorMessage(err)}
}

// IsValidationError reports whether err should be shown to the user rather
// than treated as an internal failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	var fe FormErrors
	return errors.As(err, &ve) || errors.As(err, &fe)
}

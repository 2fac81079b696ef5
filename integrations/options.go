package integrations

import (
	"context"
	"fmt"
)

// Option is a single (value, label) choice for a select field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// OptionGroup is a labelled set of choices, one per board.
type OptionGroup struct {
	Label   string   `json:"label"`
	Options []Option `json:"options"`
}

func (tc *TrelloClient) OrganizationsToOptions(ctx context.Context, member string) ([]Option, error) {
	if member == "" {
		member = DefaultMember
	}
	orgs, err := tc.GetMemberOrganizations(ctx, member, "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	options := make([]Option, 0, len(orgs))
	for _, org := range orgs {
		options = append(options, Option{Value: org.ID, Label: org.Name})
	}
	return options, nil
}

// BoardsToOptions returns the organization's boards, each with its lists,
// in the order Trello returns them.
func (tc *TrelloClient) BoardsToOptions(ctx context.Context, organization string) ([]OptionGroup, error) {
	boards, err := tc.GetOrganizationBoards(ctx, organization, "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	groups := make([]OptionGroup, 0, len(boards))
	for _, board := range boards {
		lists, err := tc.ListsToOptions(ctx, board.ID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, OptionGroup{Label: board.Name, Options: lists})
	}
	return groups, nil
}

func (tc *TrelloClient) ListsToOptions(ctx context.Context, boardID string) ([]Option, error) {
	lists, err := tc.GetBoardLists(ctx, boardID, "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list lists for board %s: %w", boardID, err)
	}
	options := make([]Option, 0, len(lists))
	for _, l := range lists {
		options = append(options, Option{Value: l.ID, Label: l.Name})
	}
	return options, nil
}

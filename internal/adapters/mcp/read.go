package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
)

// RegisterReadTools adds the read-only card tools to the MCP server.
func RegisterReadTools(s *server.MCPServer, cards ports.CardReader) {
	s.AddTool(searchCardsTool(), searchCardsHandler(cards))
	s.AddTool(getCardTool(), getCardHandler(cards))
	s.AddTool(shareCardTool(), shareCardHandler(cards))
}

// --- search_cards ---

func searchCardsTool() mcp.Tool {
	return mcp.NewTool("search_cards",
		mcp.WithDescription("Search captured business cards by name, company or tag. Without a query lists every card, grouped by initial."),
		mcp.WithString("query",
			mcp.Description("Case-insensitive text matched against name, company and tags"),
		),
	)
}

func searchCardsHandler(cards ports.CardReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		groups, err := cards.View(ctx, req.GetString("query", ""))
		if err != nil {
			return toolError(err)
		}
		if len(groups) == 0 {
			return mcp.NewToolResultText("No cards found."), nil
		}

		var sb strings.Builder
		for _, group := range groups {
			fmt.Fprintf(&sb, "%s\n", group.Key)
			for _, card := range group.Cards {
				sb.WriteString("  ")
				sb.WriteString(formatCard(card))
				sb.WriteByte('\n')
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- get_card ---

func getCardTool() mcp.Tool {
	return mcp.NewTool("get_card",
		mcp.WithDescription("Get one card with all its fields as JSON."),
		mcp.WithString("id",
			mcp.Description("Card ID as returned by search_cards"),
			mcp.Required(),
		),
	)
}

func getCardHandler(cards ports.CardReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("id", "")
		if id == "" {
			return toolError(fmt.Errorf("id is required"))
		}
		card, err := cards.Get(ctx, id)
		if err != nil {
			return toolError(err)
		}
		payload, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// --- share_card ---

func shareCardTool() mcp.Tool {
	return mcp.NewTool("share_card",
		mcp.WithDescription("Render a card as plain text ready to share: name, company, description, phones, emails and website."),
		mcp.WithString("id",
			mcp.Description("Card ID as returned by search_cards"),
			mcp.Required(),
		),
	)
}

func shareCardHandler(cards ports.CardReader) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("id", "")
		if id == "" {
			return toolError(fmt.Errorf("id is required"))
		}
		card, err := cards.Get(ctx, id)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(domain.ShareText(card)), nil
	}
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func formatCard(card domain.Card) string {
	parts := []string{card.ID, card.DisplayName()}
	if company := domain.Deref(card.Company); company != "" {
		parts = append(parts, company)
	}
	if len(card.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(card.Tags, " #"))
	}
	if card.Phase != domain.PhaseProcessed {
		parts = append(parts, "["+string(card.Phase)+"]")
	}
	return strings.Join(parts, "  ")
}

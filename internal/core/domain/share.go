package domain

import "strings"

// ShareText renders a card as plain text for sharing.
func ShareText(c Card) string {
	lines := make([]string, 0, 6)
	for _, field := range []*string{c.Name, c.Company, c.Description} {
		if v := strings.TrimSpace(Deref(field)); v != "" {
			lines = append(lines, v)
		}
	}
	if len(c.Phone) > 0 {
		lines = append(lines, "Tel: "+strings.Join(c.Phone, ", "))
	}
	if len(c.Email) > 0 {
		lines = append(lines, "Email: "+strings.Join(c.Email, ", "))
	}
	if v := strings.TrimSpace(Deref(c.Website)); v != "" {
		lines = append(lines, "Web: "+v)
	}
	return strings.Join(lines, "\n")
}

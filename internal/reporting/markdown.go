package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Sales Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Chain: %d\n\n", r.ChainID))

	// Data Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Stores | %d |\n", r.Summary.TotalStores))
	sb.WriteString(fmt.Sprintf("| Active Stores | %d |\n", r.Summary.ActiveStores))
	sb.WriteString(fmt.Sprintf("| Purchases | %d |\n", r.Summary.TotalPurchases))
	sb.WriteString(fmt.Sprintf("| Unique Buyers | %d |\n", r.Summary.UniqueBuyers))
	if r.Summary.TotalPurchases > 0 {
		sb.WriteString(fmt.Sprintf("| First Purchase | %s |\n", r.Summary.FirstPurchase.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Purchase | %s |\n", r.Summary.LastPurchase.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Per-store sections
	if len(r.Stores) == 0 {
		sb.WriteString("No stores indexed.\n")
		return sb.String()
	}

	sb.WriteString("## Stores\n\n")
	sb.WriteString("| Store | Name | Purchases | Buyers | Revenue |\n")
	sb.WriteString("|-------|------|-----------|--------|--------|\n")
	for _, s := range r.Stores {
		name := s.Name
		if name == "" {
			name = "(uninitialized)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.0f |\n",
			s.Address, name, s.Purchases, s.Buyers, s.Revenue))
	}
	sb.WriteString("\n")

	for _, s := range r.Stores {
		if s.Purchases == 0 {
			continue
		}
		title := s.Name
		if title == "" {
			title = s.Address
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", title))
		sb.WriteString(fmt.Sprintf("Owner: %s\n\n", s.Owner))

		if len(s.Daily) > 0 {
			sb.WriteString("| Day | Purchases | Revenue |\n")
			sb.WriteString("|-----|-----------|--------|\n")
			for _, d := range s.Daily {
				sb.WriteString(fmt.Sprintf("| %s | %d | %.0f |\n",
					d.Day.Format("2006-01-02"), d.Purchases, d.Revenue))
			}
			sb.WriteString("\n")
		}

		if len(s.TopBuyers) > 0 {
			sb.WriteString("Top buyers:\n\n")
			sb.WriteString("| Buyer | Purchases | Spent |\n")
			sb.WriteString("|-------|-----------|-------|\n")
			for _, b := range s.TopBuyers {
				sb.WriteString(fmt.Sprintf("| %s | %d | %.0f |\n", b.Buyer, b.Purchases, b.Spent))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

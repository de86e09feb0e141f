package funding

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

const (
	DefaultCurrency = "USD"
	summaryMaxLen   = 280
)

// currencySymbols are stripped from the front of fundingInfo.amount.
const currencySymbols = "$€£¥₦₹₵₱"

// ugc allows links, lists and tables in descriptions but drops scripts,
// iframes and event handlers.
var ugc = bluemonday.UGCPolicy()

// NormalizeAmount strips leading currency symbols and surrounding whitespace.
// It is idempotent: NormalizeAmount(NormalizeAmount(s)) == NormalizeAmount(s).
func NormalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	for s != "" {
		r, size := utf8.DecodeRuneInString(s)
		if !strings.ContainsRune(currencySymbols, r) {
			break
		}
		s = strings.TrimSpace(s[size:])
	}
	return s
}

func normalizeCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultCurrency
	}
	return s
}

// sanitizeHTML removes unsafe markup from admin-supplied descriptions.
func sanitizeHTML(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}

// htmlToText converts HTML to plain text, collapsing whitespace.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanText(html)
	}
	return cleanText(doc.Text())
}

// truncateText cuts s to at most maxLen runes, appending an ellipsis.
func truncateText(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen > 3 {
		return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
	}
	return string(runes[:maxLen])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanList trims entries and drops empty ones.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = cleanText(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// mergeUniqueFold appends items to dst skipping case-insensitive duplicates.
func mergeUniqueFold(dst []string, items []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(items))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range items {
		v = cleanText(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// normalizeCall cleans every user-supplied field in place. Requirements keep
// blank entries so validation can report them.
func normalizeCall(call *models.FundingCall) {
	call.Title = cleanText(call.Title)
	call.Organization = cleanText(call.Organization)
	call.Description = sanitizeHTML(call.Description)
	call.DescriptionText = htmlToText(call.Description)
	call.Summary = truncateText(call.DescriptionText, summaryMaxLen)
	call.Type = models.CallType(strings.ToLower(strings.TrimSpace(string(call.Type))))
	call.ApplicationURL = strings.TrimSpace(call.ApplicationURL)
	if !call.Deadline.IsZero() {
		call.Deadline = call.Deadline.UTC()
	}

	fi := &call.FundingInfo
	fi.Amount = NormalizeAmount(fi.Amount)
	fi.Currency = normalizeCurrency(fi.Currency)
	fi.Type = cleanText(fi.Type)
	fi.Duration = cleanText(fi.Duration)
	fi.BudgetLimit = cleanText(fi.BudgetLimit)

	call.Eligibility.Criteria = cleanList(call.Eligibility.Criteria)
	if len(call.Eligibility.Restrictions) > 0 {
		call.Eligibility.Restrictions = cleanList(call.Eligibility.Restrictions)
	}
	for i, r := range call.Requirements {
		call.Requirements[i] = cleanText(r)
	}
	if call.Requirements == nil {
		call.Requirements = []string{}
	}
	call.Tags = mergeUniqueFold([]string{}, call.Tags)
}

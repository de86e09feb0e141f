package funding

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// validateCall checks a normalized call and reports every failing field.
func validateCall(call *models.FundingCall) error {
	errs := fieldErrors{}

	if call.Title == "" {
		errs.add("title", "is required")
	}
	if call.Organization == "" {
		errs.add("organization", "is required")
	}
	if call.Summary == "" {
		errs.add("description", "is required")
	}

	switch {
	case call.Type == "":
		errs.add("type", "is required")
	case !call.Type.Valid():
		errs.add("type", "must be one of "+joinTypes())
	}

	if call.Deadline.IsZero() {
		errs.add("deadline", "is required")
	}

	if call.ApplicationURL == "" {
		errs.add("applicationUrl", "is required")
	} else if !isValidHTTPURL(call.ApplicationURL) {
		errs.add("applicationUrl", "must be a valid http(s) URL")
	}

	if len(call.Eligibility.Criteria) == 0 {
		errs.add("eligibility.criteria", "at least one criterion is required")
	}

	for i, r := range call.Requirements {
		if r == "" {
			errs.add(fmt.Sprintf("requirements[%d]", i), "must not be empty")
		}
	}

	return errs.err()
}

func isValidHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func joinTypes() string {
	names := make([]string, 0, len(models.CallTypes))
	for _, t := range models.CallTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func joinStatuses() string {
	names := make([]string, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

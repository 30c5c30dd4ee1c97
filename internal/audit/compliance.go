package audit

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// Profile selects which compliance rules run for a deployment. Stricter
// profiles are supersets of looser ones.
type Profile string

const (
	ProfileMinimal    Profile = "minimal"
	ProfileDetailed   Profile = "detailed"
	ProfileCompliance Profile = "compliance"
	ProfileFinancial  Profile = "financial"
)

// personalDataResources carry names, contact details or other information
// about natural persons. Bids carry contractor names.
var personalDataResources = map[string]bool{
	"users":       true,
	"contractors": true,
	"profiles":    true,
	"bids":        true,
}

// financialDataResources carry monetary amounts or payment details.
var financialDataResources = map[string]bool{
	"estimates": true,
	"bids":      true,
	"invoices":  true,
	"payments":  true,
}

// sensitiveResources expose the audit trail or platform administration.
var sensitiveResources = map[string]bool{
	"admin":   true,
	"audit":   true,
	"tenants": true,
}

type flagRule func(e Entry, roles []string) bool

// flagRules maps each compliance flag to its predicate. Evaluation order
// follows flagOrder so recorded flag slices are deterministic.
var flagRules = map[string]flagRule{
	FlagAuthentication: func(e Entry, _ []string) bool {
		return strings.HasPrefix(e.Action, ActionLogin)
	},
	FlagAccessDenied: func(e Entry, _ []string) bool {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	},
	FlagAdminAccess: func(e Entry, roles []string) bool {
		if e.Resource == "admin" {
			return true
		}
		for _, role := range roles {
			if role == "admin" || role == "system_admin" {
				return true
			}
		}
		return false
	},
	FlagSensitiveResource: func(e Entry, _ []string) bool {
		return sensitiveResources[e.Resource]
	},
	FlagAutomatedClient: func(e Entry, _ []string) bool {
		if e.UserAgent == "" {
			return false
		}
		return useragent.New(e.UserAgent).Bot()
	},
	FlagPersonalDataAccess: func(e Entry, _ []string) bool {
		return personalDataResources[e.Resource] && e.Action == ActionRead
	},
	FlagPersonalDataModification: func(e Entry, _ []string) bool {
		if !personalDataResources[e.Resource] {
			return false
		}
		switch e.Action {
		case ActionCreate, ActionUpdate, ActionDelete:
			return true
		}
		return false
	},
	FlagFinancialData: func(e Entry, _ []string) bool {
		return financialDataResources[e.Resource]
	},
	FlagDataExport: func(e Entry, _ []string) bool {
		return e.Resource == "exports" || strings.Contains(e.Path, "/export")
	},
}

// flagOrder fixes the evaluation and output order of compliance flags.
var flagOrder = []string{
	FlagAuthentication,
	FlagAccessDenied,
	FlagAdminAccess,
	FlagSensitiveResource,
	FlagAutomatedClient,
	FlagPersonalDataAccess,
	FlagPersonalDataModification,
	FlagFinancialData,
	FlagDataExport,
}

// profileFlags lists the flags each profile evaluates. The compliance
// profile runs everything; financial adds money-movement tracking to the
// detailed baseline without the personal-data rules.
var profileFlags = map[Profile][]string{
	ProfileMinimal: {
		FlagAuthentication,
		FlagAccessDenied,
	},
	ProfileDetailed: {
		FlagAuthentication,
		FlagAccessDenied,
		FlagAdminAccess,
		FlagSensitiveResource,
		FlagAutomatedClient,
	},
	ProfileCompliance: flagOrder,
	ProfileFinancial: {
		FlagAuthentication,
		FlagAccessDenied,
		FlagAdminAccess,
		FlagSensitiveResource,
		FlagAutomatedClient,
		FlagFinancialData,
		FlagDataExport,
	},
}

// Tagger applies the compliance rule set selected by the deployment
// profile. Unknown profiles fall back to detailed.
type Tagger struct {
	enabled map[string]bool
}

func NewTagger(profile Profile) *Tagger {
	flags, ok := profileFlags[profile]
	if !ok {
		flags = profileFlags[ProfileDetailed]
	}
	enabled := make(map[string]bool, len(flags))
	for _, f := range flags {
		enabled[f] = true
	}
	return &Tagger{enabled: enabled}
}

// Flags evaluates the enabled rules against the entry and the actor's
// roles, returning matched flags in a fixed order. Nil when none match.
func (t *Tagger) Flags(e Entry, roles []string) []string {
	var out []string
	for _, flag := range flagOrder {
		if !t.enabled[flag] {
			continue
		}
		if flagRules[flag](e, roles) {
			out = append(out, flag)
		}
	}
	return out
}

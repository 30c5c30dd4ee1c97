package audit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const botUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
const browserUA = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

func TestTagger_ComplianceProfile(t *testing.T) {
	tagger := NewTagger(ProfileCompliance)

	tests := []struct {
		name  string
		entry Entry
		roles []string
		want  []string
	}{
		{
			name: "login tagged as authentication",
			entry: Entry{
				Action:     ActionLogin,
				Resource:   "auth",
				StatusCode: http.StatusOK,
			},
			want: []string{FlagAuthentication},
		},
		{
			name: "failed login is authentication plus denial",
			entry: Entry{
				Action:     "LOGIN_FAILED",
				Resource:   "auth",
				StatusCode: http.StatusUnauthorized,
			},
			want: []string{FlagAuthentication, FlagAccessDenied},
		},
		{
			name: "forbidden request tagged as denied",
			entry: Entry{
				Action:     "GET_FAILED",
				Resource:   "estimates",
				StatusCode: http.StatusForbidden,
			},
			want: []string{FlagAccessDenied, FlagFinancialData},
		},
		{
			name: "bid read carries personal and financial data",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "bids",
				StatusCode: http.StatusOK,
			},
			want: []string{FlagPersonalDataAccess, FlagFinancialData},
		},
		{
			name: "bid update is a personal data modification",
			entry: Entry{
				Action:     ActionUpdate,
				Resource:   "bids",
				StatusCode: http.StatusOK,
			},
			want: []string{FlagPersonalDataModification, FlagFinancialData},
		},
		{
			name: "admin surface tagged sensitive",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "admin",
				Path:       "/api/admin/audit",
				StatusCode: http.StatusOK,
			},
			want: []string{FlagAdminAccess, FlagSensitiveResource},
		},
		{
			name: "admin role flags any access",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "estimates",
				StatusCode: http.StatusOK,
			},
			roles: []string{"admin"},
			want:  []string{FlagAdminAccess, FlagFinancialData},
		},
		{
			name: "export path tagged",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "estimates",
				Path:       "/api/estimates/export",
				StatusCode: http.StatusOK,
			},
			want: []string{FlagFinancialData, FlagDataExport},
		},
		{
			name: "bot user agent tagged automated",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "healthz",
				StatusCode: http.StatusOK,
				UserAgent:  botUA,
			},
			want: []string{FlagAutomatedClient},
		},
		{
			name: "browser user agent not automated",
			entry: Entry{
				Action:     ActionRead,
				Resource:   "healthz",
				StatusCode: http.StatusOK,
				UserAgent:  browserUA,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tagger.Flags(tt.entry, tt.roles))
		})
	}
}

func TestTagger_ProfileSelection(t *testing.T) {
	// A bid read by an admin from a bot covers rules across every tier.
	entry := Entry{
		Action:     ActionRead,
		Resource:   "bids",
		StatusCode: http.StatusForbidden,
		UserAgent:  botUA,
	}
	roles := []string{"admin"}

	tests := []struct {
		profile Profile
		want    []string
	}{
		{
			profile: ProfileMinimal,
			want:    []string{FlagAccessDenied},
		},
		{
			profile: ProfileDetailed,
			want:    []string{FlagAccessDenied, FlagAdminAccess, FlagAutomatedClient},
		},
		{
			profile: ProfileFinancial,
			want:    []string{FlagAccessDenied, FlagAdminAccess, FlagAutomatedClient, FlagFinancialData},
		},
		{
			profile: ProfileCompliance,
			want: []string{
				FlagAccessDenied, FlagAdminAccess, FlagAutomatedClient,
				FlagPersonalDataAccess, FlagFinancialData,
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			assert.Equal(t, tt.want, NewTagger(tt.profile).Flags(entry, roles))
		})
	}
}

func TestTagger_UnknownProfileFallsBackToDetailed(t *testing.T) {
	entry := Entry{
		Action:     ActionRead,
		Resource:   "bids",
		StatusCode: http.StatusOK,
	}

	// Personal-data rules only run in the compliance profile, so the
	// fallback must not tag them.
	assert.Nil(t, NewTagger(Profile("bogus")).Flags(entry, nil))
}

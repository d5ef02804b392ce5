package hooks

import (
	"context"
	"slices"
	"strings"
	"sync"
)

const defaultSignupDenyReason = "Signups are not allowed for this email address."

// FormRule requires a form after login for a client. An empty ClientID matches every client.
type FormRule struct {
	ClientID string `yaml:"client_id"`
	FormID   string `yaml:"form_id"`
}

// Rules configure the RulesGate for one tenant.
type Rules struct {
	// AllowedSignupDomains, when set, restricts signups to these email domains.
	AllowedSignupDomains []string `yaml:"allowed_signup_domains"`
	DeniedSignupDomains  []string `yaml:"denied_signup_domains"`
	SignupDenyReason     string   `yaml:"signup_deny_reason"`
	// BlockedClients deny login outright for the listed clients.
	BlockedClients  []string   `yaml:"blocked_clients"`
	LoginDenyReason string     `yaml:"login_deny_reason"`
	Forms           []FormRule `yaml:"forms"`
}

// RulesGate evaluates static per-tenant rules.
type RulesGate struct {
	mu    sync.RWMutex
	rules map[string]Rules // tenantID -> Rules
	forms FormRepo
}

var _ Gate = (*RulesGate)(nil)

func NewRulesGate(forms FormRepo) *RulesGate {
	return &RulesGate{rules: make(map[string]Rules), forms: forms}
}

func (g *RulesGate) SetRules(tenantID string, rules Rules) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[tenantID] = rules
}

func (g *RulesGate) rulesFor(tenantID string) Rules {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rules[tenantID]
}

func (g *RulesGate) ValidateSignupEmail(_ context.Context, req SignupRequest) (Decision, error) {
	rules := g.rulesFor(req.TenantID)
	reason := rules.SignupDenyReason
	if reason == "" {
		reason = defaultSignupDenyReason
	}
	domain := emailDomain(req.Email)
	if domain == "" {
		return Allow(), nil
	}
	if containsFold(rules.DeniedSignupDomains, domain) {
		return Deny(reason), nil
	}
	if len(rules.AllowedSignupDomains) > 0 && !containsFold(rules.AllowedSignupDomains, domain) {
		return Deny(reason), nil
	}
	return Allow(), nil
}

func (g *RulesGate) PostLogin(ctx context.Context, event LoginEvent) (Decision, error) {
	rules := g.rulesFor(event.TenantID)
	if slices.Contains(rules.BlockedClients, event.ClientID) {
		reason := rules.LoginDenyReason
		if reason == "" {
			reason = "Access to this application is not allowed."
		}
		return Deny(reason), nil
	}
	for _, rule := range rules.Forms {
		if rule.ClientID != "" && rule.ClientID != event.ClientID {
			continue
		}
		if event.User != nil && FormCompleted(event.User, rule.FormID) {
			continue
		}
		form, err := g.forms.Get(ctx, event.TenantID, rule.FormID)
		if err != nil {
			return Decision{}, err
		}
		return RequireForm(form.ID, form.FirstNode()), nil
	}
	return Allow(), nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(v, s) })
}

// Package localization renders voice/text messages from a data-driven (step, language, persona) table.
//
// Lookup order: exact (step, language, persona) → (step, language, default persona) →
// (step, default language, default persona). Render never fails once the engine is built:
// NewEngine rejects catalogs that lack a default template for any step.
package localization

import (
	"fmt"
	"sort"
	"strings"
)

// Step names a protocol step or message kind.
type Step string

const (
	StepRetry             Step = "RETRY"
	StepRegister          Step = "REGISTER"
	StepAskSocialQ        Step = "ASK_SOCIAL_Q"
	StepDirect            Step = "DIRECT"
	StepEscalate          Step = "ESCALATE"
	StepEscalationCreated Step = "ESCALATION_CREATED"
	StepValidatorRequest  Step = "VALIDATOR_REQUEST"
	StepIdentityConfirmed Step = "IDENTITY_CONFIRMED"
	StepApproved          Step = "APPROVED"
	StepRejected          Step = "REJECTED"
	StepExpired           Step = "EXPIRED"
	StepAlreadyProcessed  Step = "ALREADY_PROCESSED"
	StepTicketNotFound    Step = "TICKET_NOT_FOUND"
	StepMerchantNotFound  Step = "MERCHANT_NOT_FOUND"
	StepForbidden         Step = "FORBIDDEN"
	StepTryAgainLater     Step = "TRY_AGAIN_LATER"
	StepRateLimited       Step = "RATE_LIMITED"
)

// QuestionStep returns the catalog step holding the question text for a challenge key.
func QuestionStep(challengeKey string) Step {
	return Step("question." + challengeKey)
}

// Catalog maps step → language → persona → template. Templates use {name} placeholders.
type Catalog map[Step]map[string]map[string]string

// Vars are placeholder values substituted after template selection.
type Vars map[string]string

// Engine renders templates from a Catalog.
type Engine struct {
	catalog        Catalog
	defaultLang    string
	defaultPersona string
}

// NewEngine returns an Engine over catalog. Every step must have a (defaultLang, defaultPersona) template.
func NewEngine(catalog Catalog, defaultLang, defaultPersona string) (*Engine, error) {
	defaultLang = normalize(defaultLang)
	defaultPersona = normalize(defaultPersona)
	var missing []string
	for step, byLang := range catalog {
		if byLang[defaultLang][defaultPersona] == "" {
			missing = append(missing, string(step))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("localization: no %s/%s template for steps %s", defaultLang, defaultPersona, strings.Join(missing, ", "))
	}
	return &Engine{catalog: catalog, defaultLang: defaultLang, defaultPersona: defaultPersona}, nil
}

// DefaultLanguage is the language that terminates the fallback chain.
func (e *Engine) DefaultLanguage() string { return e.defaultLang }

// DefaultPersona is the persona that terminates the fallback chain.
func (e *Engine) DefaultPersona() string { return e.defaultPersona }

// Has reports whether step exists in the catalog.
func (e *Engine) Has(step Step) bool {
	_, ok := e.catalog[step]
	return ok
}

// Render selects a template for (step, language, persona) and substitutes vars.
// An unknown step renders as the step name so a message is always produced.
func (e *Engine) Render(step Step, language, persona string, vars Vars) string {
	tmpl := e.lookup(step, normalize(language), normalize(persona))
	if tmpl == "" {
		tmpl = string(step)
	}
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func (e *Engine) lookup(step Step, language, persona string) string {
	byLang, ok := e.catalog[step]
	if !ok {
		return ""
	}
	if t := byLang[language][persona]; t != "" {
		return t
	}
	if t := byLang[language][e.defaultPersona]; t != "" {
		return t
	}
	return byLang[e.defaultLang][e.defaultPersona]
}

// SpokenDigits renders a numeric code digit by digit for speech, e.g. "123456" → "1, 2, 3, 4, 5, 6".
func SpokenDigits(code string) string {
	parts := make([]string, 0, len(code))
	for _, r := range code {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ", ")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ITNORWA/SMS-APP/internal/model"
	"github.com/ITNORWA/SMS-APP/internal/repo"
	"github.com/ITNORWA/SMS-APP/internal/template"
)

// TriggerValueChange matches when the rule's watched field differs
// between the previous and current document snapshot.
const TriggerValueChange = "value_change"

type EventService struct {
	rules      repo.RuleRepository
	templates  repo.TemplateRepository
	dispatcher *Dispatcher
}

func NewEventService(rules repo.RuleRepository, templates repo.TemplateRepository, dispatcher *Dispatcher) *EventService {
	return &EventService{
		rules:      rules,
		templates:  templates,
		dispatcher: dispatcher,
	}
}

// HandleDocEvent runs every enabled rule for the event's document type
// and dispatches one batch per matching rule. Outcomes are returned in
// rule order; rules that do not match are skipped silently.
func (s *EventService) HandleDocEvent(ctx context.Context, ev model.Event) ([]model.Outcome, error) {
	if ev.DocumentType == "" || ev.Event == "" {
		return nil, fmt.Errorf("document_type and event are required")
	}

	rules, err := s.rules.ListEnabled(ctx, ev.DocumentType)
	if err != nil {
		return nil, err
	}

	var outcomes []model.Outcome
	for _, rule := range rules {
		if !matchesEvent(rule, ev) || !matchesCondition(rule, ev.Doc) {
			continue
		}

		message, err := s.renderRuleMessage(ctx, rule, ev.Doc)
		if err != nil {
			slog.Error("skipping rule with unusable template",
				"rule", rule.ID, "template", rule.TemplateName, "error", err)
			continue
		}

		outcome, err := s.dispatcher.Dispatch(ctx, Request{
			Recipients:  collectRecipients(rule, ev.Doc),
			Message:     message,
			MessageType: rule.MessageType,
			DLRURL:      rule.DLRURL,
			RefDocType:  ev.DocumentType,
			RefName:     ev.Name,
		})
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func matchesEvent(rule model.Rule, ev model.Event) bool {
	if rule.TriggerEvent == ev.Event {
		return true
	}
	if rule.TriggerEvent == TriggerValueChange && rule.ValueChangeField != "" && ev.Previous != nil {
		return stringify(ev.Previous[rule.ValueChangeField]) != stringify(ev.Doc[rule.ValueChangeField])
	}
	return false
}

// matchesCondition is a plain field/value equality check. An empty
// condition field means the rule always applies.
func matchesCondition(rule model.Rule, doc map[string]any) bool {
	if rule.ConditionField == "" {
		return true
	}
	return stringify(doc[rule.ConditionField]) == rule.ConditionValue
}

func collectRecipients(rule model.Rule, doc map[string]any) []string {
	var numbers []string

	if rule.RecipientField != "" {
		if v := stringify(doc[rule.RecipientField]); v != "" {
			numbers = append(numbers, v)
		}
	}
	for _, static := range strings.Split(rule.StaticNumbers, ",") {
		if static = strings.TrimSpace(static); static != "" {
			numbers = append(numbers, static)
		}
	}
	return numbers
}

// renderRuleMessage renders the rule's template against the document
// fields. Unresolved placeholders are tolerated here: an event message
// with a literal placeholder is more useful than no message at all.
func (s *EventService) renderRuleMessage(ctx context.Context, rule model.Rule, doc map[string]any) (string, error) {
	tmpl, err := s.templates.Get(ctx, rule.TemplateName)
	if err != nil {
		return "", err
	}
	if !tmpl.Active {
		return "", fmt.Errorf("template %q is disabled", rule.TemplateName)
	}

	rendered, missing := template.Render(tmpl.Content, doc)
	if len(missing) > 0 {
		slog.Warn("event template has unresolved placeholders",
			"template", rule.TemplateName, "missing", missing)
	}
	return rendered, nil
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

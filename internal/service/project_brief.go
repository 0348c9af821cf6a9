package service

import (
	"fmt"
	"strings"
)

// Типы автоматизации, которые принимает форма проекта.
const (
	AutomationTelegramBot     = "telegram_bot"
	AutomationTelegramMiniApp = "telegram_mini_app"
	AutomationPipeline        = "automation_pipeline"
	AutomationAIAssistant     = "ai_assistant"
	AutomationIntegration     = "integration"
)

var automationTypes = map[string]struct{}{
	AutomationTelegramBot:     {},
	AutomationTelegramMiniApp: {},
	AutomationPipeline:        {},
	AutomationAIAssistant:     {},
	AutomationIntegration:     {},
}

const maxProjectTags = 20

// tagMatcher ставит тег, если в тексте встречается любой из шаблонов.
type tagMatcher struct {
	patterns []string
	tag      string
}

// Подстрочное совпадение, поэтому "bot" срабатывает и внутри "robot".
var tagMatchers = []tagMatcher{
	{patterns: []string{"telegram", "tg", "bot"}, tag: "telegram"},
	{patterns: []string{"mini app", "miniapp", "mini-app"}, tag: "telegram-mini-app"},
	{patterns: []string{"ai", "gpt", "openai", "llm"}, tag: "ai-automation"},
	{patterns: []string{"crm", "bitrix", "amo"}, tag: "crm"},
	{patterns: []string{"stripe", "payment", "pay"}, tag: "payments"},
	{patterns: []string{"webhook"}, tag: "webhooks"},
	{patterns: []string{"google sheets", "sheets"}, tag: "google-sheets"},
	{patterns: []string{"n8n", "make.com", "zapier"}, tag: "workflow-automation"},
	{patterns: []string{"python"}, tag: "python"},
	{patterns: []string{"node", "nestjs", "typescript"}, tag: "nodejs"},
	{patterns: []string{"php", "laravel"}, tag: "php"},
}

func sanitizeSkill(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// buildProjectTags объединяет ручные навыки, теги по ключевым словам,
// тип автоматизации и интеграции. Пустые и повторные значения отбрасываются.
func buildProjectTags(in CreateProjectInput) []string {
	text := strings.ToLower(strings.Join([]string{
		in.Title,
		in.Description,
		in.MainGoal,
		strings.Join(in.Integrations, " "),
		in.BotStage,
		in.AutomationType,
	}, " "))

	candidates := make([]string, 0, len(in.Skills)+len(tagMatchers)+len(in.Integrations)+1)
	for _, s := range in.Skills {
		candidates = append(candidates, sanitizeSkill(s))
	}
	for _, m := range tagMatchers {
		for _, p := range m.patterns {
			if strings.Contains(text, p) {
				candidates = append(candidates, m.tag)
				break
			}
		}
	}
	if in.AutomationType != "" {
		candidates = append(candidates, sanitizeSkill(in.AutomationType))
	}
	for _, integration := range in.Integrations {
		candidates = append(candidates, sanitizeSkill(integration))
	}

	seen := make(map[string]struct{}, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == maxProjectTags {
			break
		}
	}
	return tags
}

// buildAutomationBrief текст приложения к описанию, пустой если полей брифа нет.
func buildAutomationBrief(in CreateProjectInput) string {
	var lines []string
	if in.AutomationType != "" {
		lines = append(lines, "Type: "+in.AutomationType)
	}
	if in.BotStage != "" {
		lines = append(lines, "Stage: "+in.BotStage)
	}
	if in.MainGoal != "" {
		lines = append(lines, "Main goal: "+in.MainGoal)
	}
	if len(in.Integrations) > 0 {
		lines = append(lines, "Integrations: "+strings.Join(in.Integrations, ", "))
	}
	if in.DeadlineDays != nil && *in.DeadlineDays > 0 {
		lines = append(lines, fmt.Sprintf("Deadline target: %d days", *in.DeadlineDays))
	}
	if in.SupportNeeded != nil {
		support := "not required"
		if *in.SupportNeeded {
			support = "required"
		}
		lines = append(lines, "Post-launch support: "+support)
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Automation brief:")
	for _, l := range lines {
		b.WriteString("\n- ")
		b.WriteString(l)
	}
	return b.String()
}

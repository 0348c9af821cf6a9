package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxProjectTitleLength       = 200
	MaxProjectDescriptionLength = 5000
	MaxProposalContentLength    = 5000
	MaxDisputeTitleLength       = 200
	MaxDisputeDescriptionLength = 5000
	MaxInviteMessageLength      = 1000
	MaxSkillLength              = 50
	MaxBudget                   = 100000000.0 // 100 миллионов
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая после обрезки пробелов.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s обязателен", fieldName)
	}
	return nil
}

func ValidateProjectTitle(title string) error {
	if err := ValidateNonEmpty("название проекта", title); err != nil {
		return err
	}
	return ValidateLength("название проекта", title, 0, MaxProjectTitleLength)
}

func ValidateProjectDescription(description string) error {
	if err := ValidateNonEmpty("описание проекта", description); err != nil {
		return err
	}
	return ValidateLength("описание проекта", description, 0, MaxProjectDescriptionLength)
}

// ValidateBudget проверяет бюджет проекта. Ноль означает «договорной».
func ValidateBudget(budget float64) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return fmt.Errorf("бюджет не может быть отрицательным")
	}
	if budget > MaxBudget {
		return fmt.Errorf("бюджет не может превышать %.0f", MaxBudget)
	}
	return nil
}

func ValidateProposalContent(content string) error {
	if err := ValidateNonEmpty("текст отклика", content); err != nil {
		return err
	}
	return ValidateLength("текст отклика", content, 0, MaxProposalContentLength)
}

// ValidateDispute проверяет заголовок и описание спора.
func ValidateDispute(title, description string) error {
	if err := ValidateNonEmpty("заголовок спора", title); err != nil {
		return err
	}
	if err := ValidateNonEmpty("описание спора", description); err != nil {
		return err
	}
	if err := ValidateLength("заголовок спора", title, 0, MaxDisputeTitleLength); err != nil {
		return err
	}
	return ValidateLength("описание спора", description, 0, MaxDisputeDescriptionLength)
}

func ValidateInviteMessage(message string) error {
	return ValidateLength("сообщение", message, 0, MaxInviteMessageLength)
}

// ValidateSkills проверяет навыки, указанные вручную. Пустые строки отбрасываются позже.
func ValidateSkills(skills []string) error {
	for _, skill := range skills {
		if utf8.RuneCountInString(strings.TrimSpace(skill)) > MaxSkillLength {
			return fmt.Errorf("навык не может быть длиннее %d символов", MaxSkillLength)
		}
	}
	return nil
}

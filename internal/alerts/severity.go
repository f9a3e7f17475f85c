package alerts

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/models"
)

// RuleCondition is the closed set of conditions a SeverityRule can match.
type RuleCondition string

const (
	ConditionCategory   RuleCondition = "category"
	ConditionSourceTool RuleCondition = "source_tool"
	ConditionKeyword    RuleCondition = "keyword"
	ConditionCountAbove RuleCondition = "count_above"
)

// SeverityRule sets an alert's severity to TargetSeverity when its
// condition matches. With EscalateOnly set it only ever raises the
// severity; with EscalateOnly unset (the zero value) it may also lower it.
type SeverityRule struct {
	Name           string
	Condition      RuleCondition
	Value          string
	TargetSeverity models.Severity
	EscalateOnly   bool
}

// DefaultSeverityRules mirrors the baseline escalation policy: intrusions
// and malware are never treated below high, and a fingerprint repeated more
// than 10 times within its dedup window escalates to critical.
var DefaultSeverityRules = []SeverityRule{
	{Name: "critical_intrusion", Condition: ConditionCategory, Value: string(models.CategoryIntrusion), TargetSeverity: models.SeverityHigh, EscalateOnly: true},
	{Name: "malware_escalate", Condition: ConditionCategory, Value: string(models.CategoryMalware), TargetSeverity: models.SeverityHigh, EscalateOnly: true},
	{Name: "repeated_high", Condition: ConditionCountAbove, Value: "10", TargetSeverity: models.SeverityCritical, EscalateOnly: true},
}

// SeverityClassifier applies a rule set to determine an alert's effective
// severity, given how many times it has occurred.
type SeverityClassifier struct {
	rules []SeverityRule
}

func NewSeverityClassifier(rules []SeverityRule) *SeverityClassifier {
	if rules == nil {
		rules = DefaultSeverityRules
	}
	return &SeverityClassifier{rules: rules}
}

// Classify applies every rule in order and returns the final severity.
// Every rule in DefaultSeverityRules (used when no rules are given) only
// escalates; a rule with EscalateOnly=false may also downgrade.
func (c *SeverityClassifier) Classify(alert models.NormalizedAlert, occurrenceCount int) models.Severity {
	current := alert.Severity
	currentLevel := models.SeverityLevels[current]

	for _, rule := range c.rules {
		switch rule.Condition {
		case ConditionCategory:
			if string(alert.Category) != rule.Value {
				continue
			}
		case ConditionSourceTool:
			if alert.SourceTool != rule.Value {
				continue
			}
		case ConditionKeyword:
			if !strings.Contains(strings.ToLower(alert.Title), strings.ToLower(rule.Value)) {
				continue
			}
		case ConditionCountAbove:
			threshold, err := strconv.Atoi(rule.Value)
			if err != nil || occurrenceCount <= threshold {
				continue
			}
		default:
			continue
		}

		targetLevel := models.SeverityLevels[rule.TargetSeverity]
		if rule.EscalateOnly && targetLevel <= currentLevel {
			continue
		}

		log.Debug().Str("rule", rule.Name).Str("from", string(current)).Str("to", string(rule.TargetSeverity)).Msg("severity rule applied")
		current = rule.TargetSeverity
		currentLevel = targetLevel
	}

	return current
}

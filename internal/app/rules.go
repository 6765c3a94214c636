package app

import (
	"fmt"

	"github.com/dshills/gpupulse/internal/alert"
	"github.com/dshills/gpupulse/internal/config"
	"github.com/dshills/gpupulse/internal/event/events"
)

// buildRules turns configured rules into engine rules. Script rules are
// also returned separately so the caller can close their interpreters
// on shutdown. A script wins over threshold fields when both are set.
func buildRules(configs []config.AlertRuleConfig) ([]alert.Rule, []*alert.ScriptRule, error) {
	rules := make([]alert.Rule, 0, len(configs))
	var scripts []*alert.ScriptRule

	for _, rc := range configs {
		severity := events.Severity(rc.Severity)
		if rc.Severity == "" {
			severity = events.SeverityWarning
		}
		if !severity.IsValid() {
			closeScripts(scripts)
			return nil, nil, fmt.Errorf("rule %q: unknown severity %q", rc.Name, rc.Severity)
		}

		if rc.Script != "" {
			script, err := alert.NewScriptRule(rc.Name, rc.Script, severity)
			if err != nil {
				closeScripts(scripts)
				return nil, nil, fmt.Errorf("rule %q: %w", rc.Name, err)
			}
			scripts = append(scripts, script)
			rules = append(rules, script)
			continue
		}

		rule := alert.NewThresholdRule(rc.Name, alert.Metric(rc.Metric), alert.Comparison(rc.Comparison), rc.Bound, severity)
		if rc.Device != nil {
			rule.Device = *rc.Device
		}
		if err := rule.Validate(); err != nil {
			closeScripts(scripts)
			return nil, nil, err
		}
		rules = append(rules, rule)
	}

	return rules, scripts, nil
}

func closeScripts(scripts []*alert.ScriptRule) {
	for _, s := range scripts {
		_ = s.Close()
	}
}

// Package recipients decides which phone numbers an event is delivered to.
package recipients

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/ziadkadry99/drivenotify/internal/config"
	"github.com/ziadkadry99/drivenotify/internal/event"
	"github.com/ziadkadry99/drivenotify/internal/phone"
)

// Resolver produces the ordered, duplicate-free recipient list for an event.
// An empty result means nobody is to be notified and is not an error.
type Resolver interface {
	Resolve(ev event.DriveEvent) []string
}

// ConfigResolver resolves recipients from deployment configuration: a
// policy selecting the base targets plus routing rules adding more.
type ConfigResolver struct {
	policy    config.RecipientPolicy
	defaults  []string
	directory map[string]string
	rules     []config.RuleConfig
	logger    zerolog.Logger
}

// NewConfigResolver builds a resolver from cfg. Directory keys are matched
// case-insensitively.
func NewConfigResolver(cfg config.RecipientsConfig, logger zerolog.Logger) *ConfigResolver {
	dir := make(map[string]string, len(cfg.Directory))
	for id, number := range cfg.Directory {
		dir[strings.ToLower(strings.TrimSpace(id))] = number
	}
	return &ConfigResolver{
		policy:    cfg.Policy,
		defaults:  cfg.Default,
		directory: dir,
		rules:     cfg.Rules,
		logger:    logger.With().Str("component", "recipients").Logger(),
	}
}

// Resolve returns normalized numbers: policy targets first, then each
// matching rule's recipients in configuration order.
func (r *ConfigResolver) Resolve(ev event.DriveEvent) []string {
	var candidates []string
	for _, id := range r.policyTargets(ev) {
		if number, ok := r.lookup(id); ok {
			candidates = append(candidates, number)
		}
	}

	for _, rule := range r.rules {
		if !ruleMatches(rule, ev) {
			continue
		}
		r.logger.Debug().Str("rule", rule.Name).Str("file", ev.FileName).Msg("routing rule matched")
		for _, id := range rule.Recipients {
			if number, ok := r.lookup(id); ok {
				candidates = append(candidates, number)
			}
		}
	}

	return Dedupe(candidates)
}

func (r *ConfigResolver) policyTargets(ev event.DriveEvent) []string {
	switch r.policy {
	case config.PolicyCollaborators:
		targets := make([]string, 0, len(ev.Editors)+len(ev.Viewers))
		targets = append(targets, ev.Editors...)
		return append(targets, ev.Viewers...)
	case config.PolicyOwner:
		if ev.Owner == "" {
			return nil
		}
		return []string{ev.Owner}
	default:
		return r.defaults
	}
}

// lookup maps an identifier to a phone number through the directory.
// Identifiers that already look like phone numbers are used as-is.
func (r *ConfigResolver) lookup(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	if number, ok := r.directory[strings.ToLower(id)]; ok {
		return number, true
	}
	if looksLikePhone(id) {
		return id, true
	}
	r.logger.Debug().Str("identifier", id).Msg("no phone number for identifier")
	return "", false
}

// Dedupe normalizes every entry, drops invalid numbers and keeps the first
// occurrence of each normalized number.
func Dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	result := make([]string, 0, len(list))
	for _, raw := range list {
		if !phone.Validate(raw) {
			continue
		}
		n := phone.Normalize(raw)
		if seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	return result
}

// ruleMatches reports whether every non-empty condition of rule holds.
func ruleMatches(rule config.RuleConfig, ev event.DriveEvent) bool {
	if rule.Pattern != "" && !matchesName(rule.Pattern, ev.FileName) {
		return false
	}
	if rule.FileType != "" && !strings.Contains(strings.ToLower(ev.FileType), strings.ToLower(rule.FileType)) {
		return false
	}
	if len(rule.EventTypes) > 0 && !contains(rule.EventTypes, ev.EventType) {
		return false
	}
	return true
}

// matchesName tries the pattern against the full name and its last segment.
func matchesName(pattern, name string) bool {
	if ok, err := doublestar.Match(pattern, name); err == nil && ok {
		return true
	}
	if ok, err := doublestar.Match(pattern, path.Base(name)); err == nil && ok {
		return true
	}
	return false
}

func looksLikePhone(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+', r == '-', r == ' ', r == '(', r == ')', r == '.':
		default:
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

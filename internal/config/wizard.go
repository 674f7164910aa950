package config

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to drivenotify! Let's configure WhatsApp delivery.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Channel selection.
	channelPrompt := promptui.Select{
		Label: "Select messaging channel",
		Items: []string{
			"graph  - Meta WhatsApp Cloud API",
			"twilio - Twilio WhatsApp",
		},
	}
	channelIdx, _, err := channelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("channel selection: %w", err)
	}
	cfg.Channel = []ChannelType{ChannelGraph, ChannelTwilio}[channelIdx]

	// 2. Credentials. Blank answers are allowed and reported at first send.
	switch cfg.Channel {
	case ChannelGraph:
		if cfg.Graph.PhoneNumberID, err = ask("Phone number ID", "", false); err != nil {
			return nil, err
		}
		if cfg.Graph.AccessToken, err = ask("Access token (blank to use WHATSAPP_ACCESS_TOKEN)", "", true); err != nil {
			return nil, err
		}
	case ChannelTwilio:
		if cfg.Twilio.AccountSID, err = ask("Account SID", "", false); err != nil {
			return nil, err
		}
		if cfg.Twilio.AuthToken, err = ask("Auth token (blank to use TWILIO_AUTH_TOKEN)", "", true); err != nil {
			return nil, err
		}
		if cfg.Twilio.WhatsAppNumber, err = ask("WhatsApp sender number", "", false); err != nil {
			return nil, err
		}
	}

	// 3. Recipients.
	policyPrompt := promptui.Select{
		Label: "Who should be notified?",
		Items: []string{
			"static        - a fixed list of numbers",
			"collaborators - the file's editors and viewers",
			"owner         - the file owner",
		},
	}
	policyIdx, _, err := policyPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("policy selection: %w", err)
	}
	cfg.Recipients.Policy = []RecipientPolicy{PolicyStatic, PolicyCollaborators, PolicyOwner}[policyIdx]

	if cfg.Recipients.Policy == PolicyStatic {
		list, err := ask("Recipient numbers (comma-separated)", "", false)
		if err != nil {
			return nil, err
		}
		cfg.Recipients.Default = splitAndTrim(list)
	}

	// 4. Database location.
	if cfg.Database.Path, err = ask("Database path", cfg.Database.Path, false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	if !cfg.HasCredentials() {
		fmt.Println("\nNote: credentials are incomplete; sends will fail until they are set in the environment.")
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func ask(label, def string, secret bool) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: def,
	}
	if secret {
		p.Mask = '*'
	}
	v, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(v), nil
}

// splitAndTrim splits a comma-separated string and trims whitespace,
// dropping empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}

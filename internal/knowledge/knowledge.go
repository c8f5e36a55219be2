// Package knowledge provides the embedded system prompt and user-facing copy.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Copy is the fixed text shown by the web console and the CLI.
type Copy struct {
	Title              string `toml:"title" json:"title"`
	Banner             string `toml:"banner" json:"banner"`
	Placeholder        string `toml:"placeholder" json:"placeholder"`
	Thinking           string `toml:"thinking" json:"thinking"`
	ThoughtsLabel      string `toml:"thoughts_label" json:"thoughts_label"`
	CredentialsHeader  string `toml:"credentials_header" json:"credentials_header"`
	CredentialsIntro   string `toml:"credentials_intro" json:"credentials_intro"`
	RecipientHelp      string `toml:"recipient_help" json:"recipient_help"`
	Initializing       string `toml:"initializing" json:"initializing"`
	NotStored          string `toml:"not_stored" json:"not_stored"`
	NotInitialized     string `toml:"not_initialized" json:"not_initialized"`
	MissingCredentials string `toml:"missing_credentials" json:"missing_credentials"`
	Initialized        string `toml:"initialized" json:"initialized"`
	ErrorPrefix        string `toml:"error_prefix" json:"error_prefix"`
	NoOutput           string `toml:"no_output" json:"no_output"`
	AppPasswordHelp    string `toml:"app_password_help" json:"app_password_help"`
}

var ui Copy

func init() {
	if _, err := toml.Decode(uiDoc, &ui); err != nil {
		panic(fmt.Sprintf("knowledge: embedded ui.toml: %v", err))
	}
}

// UI returns the embedded UI copy.
func UI() Copy {
	return ui
}

// SystemPrompt returns override when set, otherwise the embedded prompt.
func SystemPrompt(override string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return strings.TrimSpace(systemDoc)
}

package main

import (
	"strings"

	"github.com/rainagent/rain/internal/agent"
)

var credentialEnvVars = []string{
	"GROQ_API_KEY",
	"RAIN_SENDER_EMAIL",
	"RAIN_EMAIL_PASSWORD",
	"RAIN_DEFAULT_RECIPIENT",
}

// credentialsFromEnv reads agent credentials via getenv and lists any
// variables that are unset or blank.
func credentialsFromEnv(getenv func(string) string) (agent.Credentials, []string) {
	vals := make([]string, len(credentialEnvVars))
	var missing []string
	for i, name := range credentialEnvVars {
		vals[i] = strings.TrimSpace(getenv(name))
		if vals[i] == "" {
			missing = append(missing, name)
		}
	}
	return agent.Credentials{
		GroqAPIKey:       vals[0],
		SenderEmail:      vals[1],
		EmailPassword:    vals[2],
		DefaultRecipient: vals[3],
	}, missing
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

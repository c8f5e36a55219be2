package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t,
		"You are a helpful assistant. You have access to a set of tools to help you answer questions and perform tasks.",
		SystemPrompt(""))
	assert.Equal(t, "Be terse.", SystemPrompt("  Be terse.\n"))
}

func TestUICopy(t *testing.T) {
	c := UI()
	assert.Equal(t, "RAIN AI Agent 🤖", c.Title)
	assert.Equal(t, "Please fill in all the credential fields.", c.MissingCredentials)
	assert.Equal(t, "Agent initialized successfully! You can now chat.", c.Initialized)
	assert.Equal(t, "Please initialize the agent using the form in the sidebar.", c.NotInitialized)
	assert.Equal(t, "An error occurred: ", c.ErrorPrefix)
	assert.Equal(t, "I'm sorry, I encountered an error.", c.NoOutput)

	assert.Equal(t, "⚙️ Credentials", c.CredentialsHeader)
	assert.Equal(t, "Enter your API keys and email info below.", c.CredentialsIntro)
	assert.Equal(t, "The email address for alerts if none is specified in the prompt.", c.RecipientHelp)
	assert.Equal(t, "Initializing agent...", c.Initializing)
	assert.NotEmpty(t, systemDoc)
}

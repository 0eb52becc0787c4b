// Package scriptgen turns source text into a playable script with an
// OpenAI chat model.
package scriptgen

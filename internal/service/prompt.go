package service

import (
	"fmt"
	"strings"

	"github.com/fabricacollective/amplify/internal/domain"
)

// System prompts per discipline. Strategy mode asks for a plan; execution
// mode asks for ready-to-publish copy.
var disciplineFraming = map[domain.Discipline]string{
	domain.DisciplineBrandStrategy: "You are a senior brand strategist. Work from positioning, " +
		"differentiation, and audience insight rather than generic advice.",
	domain.DisciplineContentMarketing: "You are a content marketing lead. Think in funnels, " +
		"formats, and distribution channels, not isolated blog posts.",
	domain.DisciplineSocialMedia: "You are a social media strategist. Write for the platform's " +
		"native format and rhythm. Hooks matter more than polish.",
	domain.DisciplineEmailMarketing: "You are an email marketing specialist. Subject lines, " +
		"preview text, and a single clear call to action per email.",
	domain.DisciplinePaidAds: "You are a performance marketer. Every word must earn its place " +
		"in an ad with a hard character budget and a measurable goal.",
	domain.DisciplineSEO: "You are an SEO strategist. Balance search intent, topical authority, " +
		"and readability. Never stuff keywords.",
}

const (
	strategyInstruction = "Produce a concise, actionable strategy: objectives, key moves, " +
		"and how to measure success. Use markdown headings and bullet lists. " +
		"Do not write finished copy."

	executionInstruction = "Produce ready-to-use copy the brand could publish today. " +
		"Use markdown. Provide two or three variants where the format allows it."
)

// buildSystemPrompt assembles the system prompt for a generation request.
func buildSystemPrompt(discipline domain.Discipline, mode domain.ContentMode) string {
	framing := disciplineFraming[discipline]
	instruction := strategyInstruction
	if mode == domain.ContentModeExecution {
		instruction = executionInstruction
	}
	return framing + "\n\n" + instruction
}

// buildUserPrompt renders the brand brief into the user message.
func buildUserPrompt(brief domain.BrandBrief, discipline domain.Discipline) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Brand: %s\n", brief.Name)
	fmt.Fprintf(&b, "About: %s\n", brief.Description)
	if brief.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", brief.Audience)
	}
	if brief.Tone != "" {
		fmt.Fprintf(&b, "Tone of voice: %s\n", brief.Tone)
	}
	if len(brief.Goals) > 0 {
		fmt.Fprintf(&b, "Goals: %s\n", strings.Join(brief.Goals, "; "))
	}
	fmt.Fprintf(&b, "\nDiscipline: %s\n", discipline.DisplayName())

	return b.String()
}

// buildRemixPrompt renders the content-to-rewrite into the user message.
// The persona's system prompt carries the voice; the user message carries
// only the material.
func buildRemixPrompt(content string) string {
	return "Rewrite the following marketing content in your voice. " +
		"Preserve factual claims. Return only the rewritten content.\n\n---\n\n" + content
}

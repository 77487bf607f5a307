package adinsights

import "embed"

// PromptFS contains the default prompt templates for the four analysis turns. It is used when no
// prompts directory is configured.
//
//go:embed prompts/*.txt
var PromptFS embed.FS

// TemplateFS contains the embedded HTML templates of the demonstration page.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the JavaScript and CSS served alongside the demonstration page.
//
//go:embed static/*
var StaticFS embed.FS

package blueprint

import (
	"fmt"
	"strings"

	"github.com/saeedalam/stackforge/internal/language"
	"github.com/saeedalam/stackforge/pkg/types"
)

const (
	minFiles = 8
	maxFiles = 15
)

// DefaultEnhanceDirective is applied when an enhance request carries no
// instructions.
const DefaultEnhanceDirective = "Improve general code quality: fix bugs, improve structure and naming, add error handling, and follow the best practices of the stack."

func generateSystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are a senior software architect who scaffolds production-ready projects.\n")
	b.WriteString("Produce a COMPLETE, working implementation, not an outline.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Generate between %d and %d files.\n", minFiles, maxFiles)
	b.WriteString("- Every file must contain its full content. Never use placeholders such as \"TODO\", \"...\" or \"rest of code here\".\n")
	b.WriteString("- Include all configuration files the stack needs (package manifests, build config, environment examples, README).\n")
	b.WriteString("- Follow the best practices and idioms of the requested stack.\n")
	b.WriteString("- Use relative paths with forward slashes, e.g. src/index.js.\n\n")
	b.WriteString("Respond with a JSON object: {\"description\": string, \"structure\": string (ASCII tree), \"files\": [{\"path\", \"content\", \"language\"}]}.")
	return b.String()
}

func generatePrompt(projectName string, stack Stack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %s\n", projectName)
	fmt.Fprintf(&b, "Stack: %s\n\n", stack.Name)
	b.WriteString("Stack constraints:\n")
	b.WriteString(stack.Instructions)
	b.WriteString("\n")
	if len(stack.Checklist) > 0 {
		b.WriteString("\nChecklist:\n")
		for _, item := range stack.Checklist {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	return b.String()
}

func enhanceSystemInstruction(instructions string) string {
	directive := strings.TrimSpace(instructions)
	if directive == "" {
		directive = DefaultEnhanceDirective
	}

	var b strings.Builder
	b.WriteString("You are a senior software engineer improving an existing project.\n\n")
	b.WriteString("Apply the following to the project:\n")
	b.WriteString(directive)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Return the FULL improved project: every file, including the ones you did not change. Never return partial files or diffs.\n")
	b.WriteString("- Never use placeholders such as \"TODO\", \"...\" or \"rest of code here\".\n")
	b.WriteString("- Keep existing paths unless a change is required; new files are allowed.\n\n")
	b.WriteString("Respond with a JSON object: {\"description\": string, \"structure\": string (ASCII tree), \"files\": [{\"path\", \"content\", \"language\"}]}.")
	return b.String()
}

func enhancePrompt(projectName string, files []types.FileRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project name: %s\n", projectName)
	fmt.Fprintf(&b, "Current files (%d):\n\n", len(files))
	for _, f := range files {
		fence := fenceFor(f.Content)
		fmt.Fprintf(&b, "File: %s\n", f.Path)
		fmt.Fprintf(&b, "%s%s\n%s\n%s\n\n", fence, language.Resolve(f.Language, f.Path), f.Content, fence)
	}
	return b.String()
}

// fenceFor returns a backtick fence longer than any run inside content.
func fenceFor(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}

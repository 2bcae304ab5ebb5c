package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptSystem is the system prompt for every question.
	// This prompt has no format placeholders.
	PromptSystem = "system"

	// PromptGroundedAnswer answers strictly from document excerpts.
	// The template expects two %s placeholders: the excerpts, then the question.
	PromptGroundedAnswer = "grounded_answer"

	// PromptGeneralAnswer answers from general compliance knowledge.
	// The template expects one %s placeholder for the question.
	PromptGeneralAnswer = "general_answer"
)

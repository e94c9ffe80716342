package types

// GenerationRequest is what a caller asks the AI pipeline for.
type GenerationRequest struct {
	Description string `json:"description"`
	Stack       string `json:"stack"`
}

// GeneratedFile represents the structure expected from the LLM for each file.
type GeneratedFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GenerationResult is either a success carrying the generated files or a failure
// carrying a human-readable message. Build it with Succeeded or Failed.
type GenerationResult struct {
	Files []GeneratedFile `json:"files"`
	Error string          `json:"error,omitempty"`
}

// Succeeded wraps the files produced by a successful attempt.
func Succeeded(files []GeneratedFile) GenerationResult {
	if files == nil {
		files = []GeneratedFile{}
	}
	return GenerationResult{Files: files}
}

// Failed builds the failure variant. The file list is always empty.
func Failed(message string) GenerationResult {
	if message == "" {
		message = "generation failed"
	}
	return GenerationResult{Files: []GeneratedFile{}, Error: message}
}

// OK reports whether r is the success variant.
func (r GenerationResult) OK() bool {
	return r.Error == ""
}

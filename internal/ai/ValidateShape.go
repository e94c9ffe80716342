package ai

import (
	"encoding/json"
	"fmt"

	"script_ai_server/internal/types"
)

// Shape is ValidShape(Files) when Valid is set and InvalidShape(Reason) otherwise.
type Shape struct {
	Valid  bool
	Files  []types.GeneratedFile
	Reason string
}

func validShape(files []types.GeneratedFile) Shape {
	return Shape{Valid: true, Files: files}
}

func invalidShape(format string, args ...any) Shape {
	return Shape{Reason: fmt.Sprintf(format, args...)}
}

// ValidateShape checks that a recovered mapping carries a "files" list whose entries
// each have a name and textual content.
func ValidateShape(value map[string]any) Shape {
	if value == nil {
		return invalidShape("no structure recovered")
	}

	raw, ok := value["files"]
	if !ok {
		return invalidShape(`missing "files" key`)
	}
	list, ok := raw.([]any)
	if !ok {
		return invalidShape(`"files" is %T, not a list`, raw)
	}

	files := make([]types.GeneratedFile, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return invalidShape("files[%d] is %T, not an object", i, item)
		}

		name, _ := entry["name"].(string)
		if name == "" {
			// older prompts asked for "filename"
			name, _ = entry["filename"].(string)
		}
		if name == "" {
			return invalidShape("files[%d] has no name", i)
		}

		content, err := contentString(entry["content"])
		if err != nil {
			return invalidShape("files[%d] content: %v", i, err)
		}

		files = append(files, types.GeneratedFile{Name: name, Content: content})
	}

	return validShape(files)
}

// contentString accepts text as is. Structured content (models like to inline a
// package.json as an object) is re-encoded as indented JSON.
func contentString(v any) (string, error) {
	switch c := v.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	default:
		b, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

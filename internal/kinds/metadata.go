package kinds

import (
	json "github.com/goccy/go-json"
)

// describeMetadata picks a display name out of a kind 0 content blob.
// Priority: name > display_name.
func describeMetadata(content string) string {
	if content == "" {
		return ""
	}

	var metadata struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal([]byte(content), &metadata); err != nil {
		return "Invalid metadata"
	}

	switch {
	case metadata.Name != "":
		return metadata.Name
	case metadata.DisplayName != "":
		return metadata.DisplayName
	default:
		return "No name"
	}
}

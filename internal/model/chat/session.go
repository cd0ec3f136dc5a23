package chat

import "github.com/zhouzirui/parent-coach/backend/internal/model/profile"

// State is the conversation snapshot rendered by the page.
type State struct {
	ActiveProfile *profile.Profile `json:"activeProfile,omitempty"`
	Messages      []Message        `json:"messages"`
	Loading       bool             `json:"loading"`
	Error         string           `json:"error,omitempty"`
	Backend       string           `json:"backend"`
	Speech        bool             `json:"speech"`
}

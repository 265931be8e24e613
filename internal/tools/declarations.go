package tools

import (
	"slices"

	"github.com/MrWong99/aura/pkg/provider/live"
)

// Names of the declared tools.
const (
	SystemControl      = "system_control"
	ApplicationControl = "application_control"
	MediaControl       = "media_control"
	SetReminder        = "set_reminder"
	WebSearch          = "web_search"
)

// Accepted action values, upper-case.
var (
	systemActions      = []string{"SHUTDOWN", "RESTART"}
	applicationActions = []string{"OPEN", "CLOSE"}
	mediaActions       = []string{"PLAY", "PAUSE", "VOLUME_UP", "VOLUME_DOWN"}
)

// Declarations returns the fixed tool set offered to the live model. The
// parameter schemas use the OpenAPI subset understood by Gemini.
func Declarations() []live.ToolDefinition {
	return []live.ToolDefinition{
		{
			Name:        SystemControl,
			Description: "Shut down or restart the user's computer.",
			Parameters: object(map[string]any{
				"action": enum("The system action to perform.", systemActions),
			}, "action"),
		},
		{
			Name:        ApplicationControl,
			Description: "Open or close an application on the user's computer.",
			Parameters: object(map[string]any{
				"action":          enum("Whether to open or close the application.", applicationActions),
				"applicationName": str("The name of the application, e.g. Spotify or Calculator."),
			}, "action", "applicationName"),
		},
		{
			Name:        MediaControl,
			Description: "Control media playback and volume.",
			Parameters: object(map[string]any{
				"action": enum("The media action to perform.", mediaActions),
				"target": str("Optional player or device the action applies to."),
			}, "action"),
		},
		{
			Name: SetReminder,
			Description: "Set a reminder. Provide either delayMinutes for a relative time " +
				"or specificTime for a clock time such as 4:30 PM.",
			Parameters: object(map[string]any{
				"reminderText": str("What the user wants to be reminded of."),
				"delayMinutes": map[string]any{
					"type":        "NUMBER",
					"description": "Minutes from now until the reminder is due.",
				},
				"specificTime": str("A 12-hour clock time in the form H:MM AM/PM."),
			}, "reminderText"),
		},
		{
			Name:        WebSearch,
			Description: "Search the web for current information and answer with sources.",
			Parameters: object(map[string]any{
				"query": str("The search query."),
			}, "query"),
		},
	}
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "OBJECT",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "STRING", "description": desc}
}

func enum(desc string, values []string) map[string]any {
	return map[string]any{"type": "STRING", "description": desc, "enum": slices.Clone(values)}
}

package script

// BatchTemplate returns a starter batch definition for `generate batch`.
func BatchTemplate(name string) *Batch {
	return &Batch{
		Name:        name,
		Description: "Batch job: " + name,
		Tools: []Invocation{
			{
				Server:    "filesystem",
				Tool:      "list_files",
				Arguments: map[string]any{"path": ".", "recursive": true},
			},
			{
				Server:    "filesystem",
				Tool:      "read_file",
				Arguments: map[string]any{"path": "config.json"},
			},
		},
	}
}

// ScriptTemplate returns a starter script definition for `generate script`.
func ScriptTemplate(name string) *Script {
	return &Script{
		Name:        name,
		Description: "Automation script: " + name,
		Steps: []Step{
			{
				Type:    StepChat,
				Name:    "Initial greeting",
				Message: "Hello, prepare to execute the workflow",
			},
			{
				Type:      StepTool,
				Name:      "List files",
				Server:    "filesystem",
				Tool:      "list_files",
				Arguments: map[string]any{"path": "."},
			},
			{
				Type:    StepWait,
				Name:    "Processing delay",
				Seconds: 2,
			},
		},
	}
}

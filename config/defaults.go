package config

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/nanopaca",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Instance: InstanceConfig{
			Type: "nanogpt",
			URL:  "https://nano-gpt.com/api/v1",
		},
		EnabledTools: []string{"web_search", "web_scrape"},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Nanopaca System Configuration
# Location: ~/.config/nanopaca/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the record store and user config are stored
data_directory = "~/.local/share/nanopaca"
`
}

func GenerateUserConfigTemplate() string {
	return `# Nanopaca User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Tools offered to the model
enabled_tools = ["web_search", "web_scrape"]

[instance]
# Instance type: "nanogpt", "openai", "ollama" or "anthropic"
type = "nanogpt"

# API endpoint
url = "https://nano-gpt.com/api/v1"

# API key (or set NANOPACA_API_KEY)
api_key = ""
`
}

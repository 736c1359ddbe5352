package main

import (
	"encoding/json"
	"os"
)

const defaultMasterPrompt = "You are a helpful assistant. Be concise and use the same language as the user."

// config struct for loading a configuration file
type config struct {
	// web server
	ServerPort string `json:"server_port"`

	// openai api
	OpenAIAPIKey         string `json:"openai_api_key"`
	OpenAIOrganizationID string `json:"openai_org_id"`
	// optional OpenAI-compatible server (e.g. an Ollama instance)
	OpenAIBaseURL string `json:"openai_base_url"`

	Model      string `json:"openai_model"`
	MiniModel  string `json:"openai_mini_model"`
	ImageModel string `json:"image_model"`

	MasterPrompt string  `json:"master_prompt"`
	Temperature  float64 `json:"temperature"`

	// admin token gating the system-prompt override; empty leaves it open
	AdminToken string `json:"admin_token"`

	// requests per source address per minute
	RateLimit int `json:"rate_limit"`

	// sqlite path for the usage ledger; empty disables it
	DBPath string `json:"db_path"`

	Verbose bool `json:"verbose,omitempty"`
}

// load config at given path
func loadConfig(fpath string) (conf config, err error) {
	var bytes []byte
	if bytes, err = os.ReadFile(fpath); err != nil {
		return config{}, err
	}
	if err = json.Unmarshal(bytes, &conf); err != nil {
		return config{}, err
	}

	// secrets may come from the environment instead of the file
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		conf.OpenAIAPIKey = key
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		conf.AdminToken = token
	}

	if conf.ServerPort == "" {
		conf.ServerPort = "8080"
	}
	if conf.Model == "" {
		conf.Model = "gpt-4o"
	}
	if conf.MiniModel == "" {
		conf.MiniModel = "gpt-4o-mini"
	}
	if conf.ImageModel == "" {
		conf.ImageModel = "dall-e-3"
	}
	if conf.MasterPrompt == "" {
		conf.MasterPrompt = defaultMasterPrompt
	}
	if conf.Temperature == 0 {
		conf.Temperature = 0.8
	}
	if conf.RateLimit == 0 {
		conf.RateLimit = 60
	}

	return conf, nil
}

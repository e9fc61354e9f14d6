package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jcrabapple/Nanopaca/chat"
	"github.com/jcrabapple/Nanopaca/config"
	"github.com/jcrabapple/Nanopaca/engine"
	"github.com/jcrabapple/Nanopaca/instance"
	"github.com/jcrabapple/Nanopaca/storage"
	"github.com/jcrabapple/Nanopaca/tools"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	config.InitDebugLog(cfg.DataDir())

	store, err := storage.Open(cfg.DataDir())
	if err != nil {
		fmt.Printf("Failed to open record store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	inst, err := buildInstance(cfg, store)
	if err != nil {
		fmt.Printf("Failed to configure instance: %v\n", err)
		os.Exit(1)
	}

	registry := buildRegistry(cfg)
	eng := engine.New(inst, registry, store, consoleView{})

	fmt.Printf("nanopaca %s (%s instance %q)\n", Version, inst.Type(), inst.Name())
	runConsole(eng, registry)
}

// buildInstance resolves the active instance: the selected persisted record
// when one exists, otherwise a new record built from the configuration.
func buildInstance(cfg *config.Config, store *storage.Store) (instance.Instance, error) {
	records, err := store.GetInstances()
	if err != nil {
		return nil, err
	}

	var id, instanceType string
	var settings instance.Settings

	if len(records) > 0 {
		rec := records[0]
		for _, r := range records {
			if cfg.SelectedInstance != "" && r.ID == cfg.SelectedInstance {
				rec = r
				break
			}
		}
		id = rec.ID
		instanceType = rec.Type
		settings = instance.FromProperties(rec.Properties)
	} else {
		id = uuid.New().String()
		instanceType = cfg.InstanceType
		settings = instance.DefaultSettings()
		settings.Name = cfg.InstanceName
		settings.URL = cfg.InstanceURL
		settings.APIKey = cfg.APIKey
		if settings.Name == "" {
			settings.Name = instanceType
		}
		if err := store.InsertOrUpdateInstance(id, false, instanceType, settings.Properties()); err != nil {
			return nil, err
		}
		if cfg.User != nil {
			cfg.User.SelectedInstance = id
			if err := config.SaveUserConfig(cfg.DataDir(), cfg.User); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("failed to save user config: %v", err)
			}
		}
	}

	switch instanceType {
	case "nanogpt":
		return instance.NewNanoGPT(id, settings, store), nil
	case "ollama":
		return instance.NewOllama(id, settings, store)
	case "anthropic":
		return instance.NewAnthropic(id, settings, store), nil
	default:
		return instance.NewOpenAICompat(id, settings, 0, store), nil
	}
}

// buildRegistry registers the built-in tools and enables the configured set.
func buildRegistry(cfg *config.Config) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NoTool{})
	registry.Register(tools.AutoTool{})
	registry.Register(tools.WebSearch{})
	registry.Register(tools.WebScrape{})
	registry.Register(tools.YouTubeTranscript{})
	registry.Register(tools.CheckBalance{})
	registry.Register(tools.ImageGeneration{})
	registry.Register(&tools.Terminal{})
	registry.Register(&tools.BackgroundRemover{})

	for _, name := range cfg.EnabledTools {
		registry.SetEnabled(name, true)
	}
	return registry
}

// runConsole is the minimal line-oriented front end. Each input line becomes
// a user turn; the response streams to stdout as it generates.
func runConsole(eng *engine.Engine, registry *tools.Registry) {
	conv := chat.NewConversation()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Printf("\n[%s] > ", conv.Name())
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		conv.Append(chat.NewMessage(chat.RoleUser, line))
		target := chat.NewMessage(chat.RoleAssistant, "")
		conv.Append(target)

		var err error
		if len(registry.Enabled()) > 0 {
			err = eng.GenerateWithTools(context.Background(), conv, target)
		} else {
			err = eng.Generate(context.Background(), conv, target)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}
	}
}

// consoleView streams engine output to the terminal.
type consoleView struct{}

func (consoleView) UpdateMessage(delta string) {
	fmt.Print(delta)
}

func (consoleView) FinishGeneration(final string) {
	fmt.Println()
}

func (consoleView) AddAttachment(att chat.Attachment) {
	fmt.Printf("\n[%s attachment: %s]\n", att.Type, att.Name)
}

func (consoleView) ShowError(title, body string, err error) {
	fmt.Fprintf(os.Stderr, "\n%s: %s (%v)\n", title, body, err)
}

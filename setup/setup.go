package setup

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"remy/config"
)

// Answers is what the setup form collects.
type Answers struct {
	Provider     string
	OpenAIAPIKey string
	GeminiAPIKey string
	AudioDevice  string
	VideoDevice  string
}

func newForm(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which model provider should remy use?").
				Options(
					huh.NewOption("OpenAI (Whisper + GPT-4o)", config.ProviderOpenAI),
					huh.NewOption("Google Gemini", config.ProviderGemini),
				).
				Value(&a.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter your OpenAI API Key").
				EchoMode(huh.EchoModePassword).
				Value(&a.OpenAIAPIKey),
		).WithHideFunc(func() bool { return a.Provider != config.ProviderOpenAI }),
		huh.NewGroup(
			huh.NewInput().
				Title("Enter your Google Cloud (Gemini) API Key").
				EchoMode(huh.EchoModePassword).
				Value(&a.GeminiAPIKey),
		).WithHideFunc(func() bool { return a.Provider != config.ProviderGemini }),
		huh.NewGroup(
			huh.NewInput().
				Title("Microphone device (empty for no audio)").
				Value(&a.AudioDevice),
			huh.NewInput().
				Title("Camera device").
				Value(&a.VideoDevice),
		),
	)
}

// Apply stores the answers in v and writes the config file.
func Apply(v *viper.Viper, a Answers) error {
	values := map[string]string{
		"provider":     a.Provider,
		"audio.device": a.AudioDevice,
		"video.device": a.VideoDevice,
	}
	if a.OpenAIAPIKey != "" {
		values["openai_api_key"] = a.OpenAIAPIKey
	}
	if a.GeminiAPIKey != "" {
		values["gemini_api_key"] = a.GeminiAPIKey
	}
	for key, value := range values {
		v.Set(key, value)
	}
	return config.Set(v, "provider", a.Provider)
}

func RunSetup(v *viper.Viper) {
	log.Info("Starting remy setup...")

	a := Answers{
		Provider:     v.GetString("provider"),
		OpenAIAPIKey: v.GetString("openai_api_key"),
		GeminiAPIKey: v.GetString("gemini_api_key"),
		AudioDevice:  v.GetString("audio.device"),
		VideoDevice:  v.GetString("video.device"),
	}
	if a.Provider == "" {
		a.Provider = config.ProviderOpenAI
	}

	if err := newForm(&a).Run(); err != nil {
		log.Fatal("Error during setup", "error", err)
	}

	if err := Apply(v, a); err != nil {
		log.Fatal("Error saving configuration", "error", err)
	}

	log.Info("Setup completed successfully!", "file", v.ConfigFileUsed())
}

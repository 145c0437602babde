package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http_port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	err := Apply(v, Answers{
		Provider:     "gemini",
		GeminiAPIKey: "g-key",
		VideoDevice:  "1",
	})
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}

	reread := viper.New()
	reread.SetConfigFile(path)
	if err := reread.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	if got := reread.GetString("provider"); got != "gemini" {
		t.Errorf("provider = %q", got)
	}
	if got := reread.GetString("gemini_api_key"); got != "g-key" {
		t.Errorf("gemini_api_key = %q", got)
	}
	if got := reread.GetString("video.device"); got != "1" {
		t.Errorf("video.device = %q", got)
	}
	if got := reread.GetInt("http_port"); got != 9000 {
		t.Errorf("existing http_port lost: %d", got)
	}
	if reread.IsSet("openai_api_key") {
		t.Errorf("empty OpenAI key was written")
	}
}

package core

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gchat/model"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramAPIID   int
	TelegramAPIHash string
	TelegramPhone   string
	SessionFile     string

	GeminiAPIKey string
	GeminiModel  string

	Prefix       string
	RolesURL     string
	BotPicChatID int64
	Timezone     string
	VoiceLang    string

	RedisURL   string
	DataDir    string
	ReplyDelay time.Duration
}

var Cfg = defaultConfig()

func defaultConfig() Config {
	return Config{
		SessionFile: "gchat.session",
		GeminiModel: model.DefaultModel,
		Prefix:      ".",
		RolesURL:    "https://gist.githubusercontent.com/iTahseen/00890d65192ca3bd9b2a62eb034b96ab/raw/roles.json",
		Timezone:    "America/Los_Angeles",
		VoiceLang:   "en",
		ReplyDelay:  2100 * time.Millisecond,
	}
}

func init() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[ENV] loaded .env")
	}
	Cfg = LoadConfig()
}

// ReloadConfig re-reads .env and the environment, e.g. after the setup
// wizard has written new values.
func ReloadConfig() {
	if err := godotenv.Overload(); err != nil {
		log.Printf("[ENV] reload .env: %v", err)
	}
	Cfg = LoadConfig()
}

// LoadConfig builds a Config from the process environment.
func LoadConfig() Config {
	cfg := defaultConfig()

	if id, err := strconv.Atoi(os.Getenv("TELEGRAM_API_ID")); err == nil {
		cfg.TelegramAPIID = id
	}
	cfg.TelegramAPIHash = os.Getenv("TELEGRAM_API_HASH")
	cfg.TelegramPhone = os.Getenv("TELEGRAM_PHONE")
	if v := os.Getenv("TELEGRAM_SESSION"); v != "" {
		cfg.SessionFile = v
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}

	if v := strings.TrimSpace(os.Getenv("COMMAND_PREFIX")); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv("ROLES_URL"); v != "" {
		cfg.RolesURL = v
	}
	if id, err := strconv.ParseInt(os.Getenv("BOT_PIC_CHAT_ID"), 10, 64); err == nil {
		cfg.BotPicChatID = id
	}
	if v := os.Getenv("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("VOICE_LANG"); v != "" {
		cfg.VoiceLang = v
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, ".gchat")
		}
	}
	if ms, err := strconv.Atoi(os.Getenv("REPLY_DELAY_MS")); err == nil && ms >= 0 {
		cfg.ReplyDelay = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

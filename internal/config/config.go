package config // package config loads application configuration from environment variables

import (
	"log"     // log reports a malformed .env file
	"os"      // os provides access to environment variables
	"strings" // strings normalizes enum-like values

	"github.com/joho/godotenv" // godotenv preloads variables from a local .env file
)

// ID policies understood by the item registry.
const (
	IDPolicyFixed      = "fixed"      // every created item receives id 4
	IDPolicySequential = "sequential" // created items receive max(id)+1
)

// DefaultWelcomeMessage is returned by GET / unless WELCOME_MESSAGE overrides it.
const DefaultWelcomeMessage = "Welcome to the Fastify API!"

// Config holds the core runtime configuration values.  Each field corresponds
// to an environment variable.  Optional collaborators (Redis, RabbitMQ) have
// their own loaders in this package.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	LogLevel       string // echo logger level: debug, info, warn, error, off
	IDPolicy       string // id assignment policy for created items
	WelcomeMessage string // body message of the root route
}

// LoadDotEnv reads a .env file from the working directory when one exists.
// Variables already present in the environment win over the file.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Every value has a default so the service starts with an empty
// environment.
func Load() Config {
	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "3000"),
		LogLevel:       strings.ToLower(envStr("LOG_LEVEL", "info")),
		IDPolicy:       parseIDPolicy(envStr("ITEM_ID_POLICY", IDPolicyFixed)),
		WelcomeMessage: envStr("WELCOME_MESSAGE", DefaultWelcomeMessage),
	}
}

// parseIDPolicy normalizes the policy name; unknown names fall back to fixed.
func parseIDPolicy(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case IDPolicySequential:
		return IDPolicySequential
	default:
		return IDPolicyFixed
	}
}

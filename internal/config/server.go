package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Server is the configuration of "clk serve", read from the environment.
type Server struct {
	// Addr is the listen address, from CLK_ADDR or ":" + PORT.
	Addr string
	// RelayURL is the spreadsheet relay endpoint (GOOGLE_SCRIPT_URL).
	RelayURL string
	// WorkbookPath is a local .xlsx file that receives one row per event.
	WorkbookPath string
	// DatabaseDriver is "mysql" or "sqlite"; empty disables the database.
	DatabaseDriver string
	DatabaseDSN    string
}

// LoadServer reads a .env file from envFile when it exists, then the
// process environment. Variables already set are not overridden.
func LoadServer(envFile string) (Server, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Server{}, err
		}
	}
	s := Server{
		Addr:           GetEnv("CLK_ADDR", ""),
		RelayURL:       GetEnv("GOOGLE_SCRIPT_URL", ""),
		WorkbookPath:   GetEnv("WORKBOOK_PATH", ""),
		DatabaseDriver: GetEnv("DATABASE_DRIVER", ""),
		DatabaseDSN:    GetEnv("DATABASE_DSN", ""),
	}
	if s.Addr == "" {
		s.Addr = ":" + GetEnv("PORT", "3000")
	}
	return s, nil
}

// GetEnv returns the variable or fallback when it is unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

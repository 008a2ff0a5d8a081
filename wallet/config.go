package wallet

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config is what Open needs to locate the proof store and the mint this
// wallet instance talks to.
type Config struct {
	DBPath  string
	MintURL string
}

// DefaultConfig loads CASHU_WALLET_DB and CASHU_MINT_URL from a .env file
// in the working directory (if present) or the process environment,
// falling back to ~/.swallet/wallet.db and a local test mint.
func DefaultConfig() Config {
	if wd, err := os.Getwd(); err == nil {
		envPath := filepath.Join(wd, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				log.Printf("wallet: could not load %s: %v", envPath, err)
			}
		}
	}

	dbPath := os.Getenv("CASHU_WALLET_DB")
	if dbPath == "" {
		dbPath = defaultDBPath()
	}

	mintURL := os.Getenv("CASHU_MINT_URL")
	if mintURL == "" {
		mintURL = "http://127.0.0.1:3338"
	}

	return Config{DBPath: dbPath, MintURL: mintURL}
}

func defaultDBPath() string {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "swallet.db"
	}
	dir := filepath.Join(homedir, ".swallet")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "swallet.db"
	}
	return filepath.Join(dir, "wallet.db")
}

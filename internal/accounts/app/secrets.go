package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
)

// Secrets holds the key material read from disk at startup.
type Secrets struct {
	Pepper     string
	SessionKey string
}

// InitSecrets loads the password pepper and the session sealing key,
// generating either one on first start.
//
// Both files must survive restarts: a new pepper invalidates every stored
// password hash, and a new sealing key signs every user out.
func InitSecrets(cfg Config, logger *slog.Logger) (Secrets, error) {
	pepper, err := cryptox.LoadOrCreateSecret(cfg.PepperFile, cryptox.TokenSize256)
	if err != nil {
		return Secrets{}, fmt.Errorf("failed to load pepper: %w", err)
	}
	logger.Info("password pepper loaded", "path", cfg.PepperFile)

	key, err := cryptox.LoadOrCreateSecret(cfg.SessionKeyFile, cryptox.TokenSize256)
	if err != nil {
		return Secrets{}, fmt.Errorf("failed to load session key: %w", err)
	}
	logger.Info("session sealing key loaded", "path", cfg.SessionKeyFile)

	return Secrets{Pepper: pepper, SessionKey: key}, nil
}

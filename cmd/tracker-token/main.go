// Command tracker-token issues a dashboard token for an account, for
// operators and integration scripts.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evn/fleet_tracker/config"
	"github.com/evn/fleet_tracker/internal/services/auth"
)

func main() {
	accountID := flag.Int64("account", 0, "account id written to the user_id claim")
	username := flag.String("username", "operator", "username claim")
	ttl := flag.Duration("ttl", 7*24*time.Hour, "token lifetime")
	flag.Parse()

	if *accountID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: tracker-token -account <id> [-username name] [-ttl 168h]")
		os.Exit(2)
	}

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	token, err := issue(auth.NewJWTService(cfg.JwtSecret).WithTTL(*ttl), *accountID, *username)
	if err != nil {
		logrus.WithError(err).Fatal("issue token")
	}
	fmt.Println(token)
}

// issue signs a token and reads it back the way the dashboard does.
func issue(svc *auth.JWTService, accountID int64, username string) (string, error) {
	token, err := svc.GenerateToken(accountID, username)
	if err != nil {
		return "", err
	}
	got, err := svc.ParseAccountID(token)
	if err != nil {
		return "", fmt.Errorf("verify issued token: %w", err)
	}
	if got != accountID {
		return "", fmt.Errorf("issued token carries account %d, want %d", got, accountID)
	}
	return token, nil
}

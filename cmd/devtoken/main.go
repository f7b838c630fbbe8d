// Command devtoken mints a bearer token for local testing against the API. Production tokens come
// from the identity provider; this only shares its signing secret.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/domain"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		subject string
		role    string
		secret  string
		ttl     int
		verbose bool
	)

	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&subject, "sub", "", "requester id placed in the sub claim")
	flagSet.StringVar(&role, "role", string(domain.RoleBuyer), "requester role: buyer, supplier or staff")
	flagSet.StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HS256 signing secret (default $AUTH_JWT_SECRET)")
	flagSet.IntVar(&ttl, "ttl", 60, "token lifetime in minutes")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "print the expiry next to the token")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if subject == "" {
		return errors.New("--sub is required")
	}
	if secret == "" {
		return errors.New("--secret is required when AUTH_JWT_SECRET is unset")
	}
	if !domain.Role(role).Valid() {
		return fmt.Errorf("invalid --role %q", role)
	}

	token, expiresAt, err := auth.NewTokenManager(secret, ttl).GenerateToken(subject, domain.Role(role))
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(stdout, "%s\texpires %s\n", token, expiresAt.Format(time.RFC3339))
		return nil
	}
	fmt.Fprintln(stdout, token)
	return nil
}

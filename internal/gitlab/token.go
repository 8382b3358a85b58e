package gitlab

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:GITLAB_TOKEN"
	AuthTokenSourceEnvCompat AuthTokenSource = "env:ACCESS_TOKEN"
	AuthTokenSourceGlabCLI  AuthTokenSource = "glab"
)

// ResolveAuthToken resolves a GitLab access token.
//
// Precedence:
//  1. provided (if non-empty; typically the config file or --token)
//  2. GITLAB_TOKEN env var
//  3. ACCESS_TOKEN env var (compatibility with older deployments)
//  4. GitLab CLI: `glab auth token`
//
// It never prints the token.
func ResolveAuthToken(ctx context.Context, provided string) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv("GITLAB_TOKEN")); env != "" {
		return env, AuthTokenSourceEnv, nil
	}
	if env := strings.TrimSpace(os.Getenv("ACCESS_TOKEN")); env != "" {
		return env, AuthTokenSourceEnvCompat, nil
	}

	tok, ok, err := tokenFromGlabCLI(ctx)
	if err != nil {
		return "", "", err
	}
	if ok {
		return tok, AuthTokenSourceGlabCLI, nil
	}
	return "", "", nil
}

func tokenFromGlabCLI(ctx context.Context) (token string, ok bool, err error) {
	_, lookErr := exec.LookPath("glab")
	if lookErr != nil {
		return "", false, nil
	}

	// Keep this bounded so a broken glab config or credential helper
	// doesn't hang runs.
	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "glab", "auth", "token")
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		// If the context was canceled or timed out, surface that to callers.
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// glab present but not logged in, or otherwise failing: treat as "no
		// token" rather than surfacing its raw output.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}

	// Basic sanity: tokens must not contain whitespace.
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("invalid token returned by glab: contains whitespace")
	}

	return tok, true, nil
}

// Command authcli is an interactive demonstration of the session client: it
// hydrates from the local session store, logs in against a remote
// authentication service, and walks through whatever challenges the service
// returns.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store/bbolt"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.Load()
	displayAppname(c.GetAppName())

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if c.GetEnv() != "DEV" {
		logger = logger.Level(zerolog.InfoLevel)
	}

	store, err := bbolt.NewStoreFromFile(c.GetStorePath(), nil)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	httpClient, err := transport.NewHTTPClient(
		c.GetBaseURL(),
		transport.WithHTTPClient(&http.Client{Timeout: time.Duration(c.GetHTTPTimeoutSeconds()) * time.Second}),
		transport.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}
	refreshClient := transport.NewRefreshClient(httpClient, c.GetRefreshPath())
	refreshClient.SetLogger(logger)

	// The client must post the same refresh path the refresh transport
	// exempts, or a failing refresh would re-enter the retry policy.
	client, err := auth.NewClient(refreshClient, store,
		auth.WithLogger(logger),
		auth.WithRefreshPath(c.GetRefreshPath()),
	)
	if err != nil {
		return fmt.Errorf("build session client: %w", err)
	}

	// Two-phase wiring: the transports need the completed client for token
	// injection and refresh.
	httpClient.SetTokenProvider(client)
	refreshClient.AttachSession(client)

	controller, err := session.NewController(client, session.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build controller: %w", err)
	}
	defer controller.Close()

	ctx := context.Background()
	if err := controller.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	httpClient.SetHeader("X-Client-ID", client.ClientID())

	in := bufio.NewScanner(os.Stdin)
	if !controller.IsAuthenticated() && controller.State().Challenge == nil {
		if err := loginFlow(ctx, controller, in); err != nil {
			return err
		}
	}
	if err := challengeFlow(ctx, controller, client, in); err != nil {
		return err
	}

	printProfile(controller.State().User)
	return nil
}

func loginFlow(ctx context.Context, controller *session.Controller, in *bufio.Scanner) error {
	email := prompt(in, "Email: ")
	password := prompt(in, "Password: ")

	if _, err := controller.Login(ctx, auth.Credentials{Email: email, Password: password}); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// challengeFlow walks chained challenges until the flow is terminal.
func challengeFlow(ctx context.Context, controller *session.Controller, client *auth.Client, in *bufio.Scanner) error {
	for {
		pending := controller.State().Challenge
		if pending == nil {
			return nil
		}
		step, err := auth.StepFor(pending)
		if err != nil {
			return err
		}

		cr := auth.ChallengeResponse{Type: step.Kind, Session: pending.Session}
		switch {
		case step.NeedsNewPassword:
			cr.NewPassword = prompt(in, "New password: ")

		case step.NeedsSetupData:
			if err := mfaSetup(ctx, client, pending, in, &cr); err != nil {
				return err
			}

		default:
			if step.NeedsMethod {
				cr.Method = chooseMethod(in, auth.AllowedMethods(pending))
			}
			if step.NeedsCode {
				if dest := auth.MaskedDestination(pending); dest != "" {
					fmt.Printf("A code was sent to %s\n", dest)
				}
				cr.Code = prompt(in, "Code: ")
			}
		}

		if _, err := controller.RespondToChallenge(ctx, cr); err != nil {
			return fmt.Errorf("challenge %s: %w", step.Kind, err)
		}
	}
}

func mfaSetup(ctx context.Context, client *auth.Client, pending *auth.AuthResponse, in *bufio.Scanner, cr *auth.ChallengeResponse) error {
	cr.Method = chooseMethod(in, auth.AllowedMethods(pending))
	data, err := client.GetSetupData(ctx, cr.Method)
	if err != nil {
		return fmt.Errorf("fetch setup data: %w", err)
	}
	if data.AutoCompleted() {
		cr.SetupData = &auth.SetupData{DeviceID: data.DeviceID}
		return nil
	}
	if data.Secret != "" {
		fmt.Printf("Add this secret to your authenticator: %s\n", data.Secret)
	}
	if data.Destination != "" {
		fmt.Printf("A code was sent to %s\n", data.Destination)
	}
	cr.SetupData = &auth.SetupData{Code: prompt(in, "Setup code: ")}
	return nil
}

func chooseMethod(in *bufio.Scanner, methods []string) string {
	if len(methods) == 1 {
		return methods[0]
	}
	if len(methods) > 1 {
		return prompt(in, fmt.Sprintf("Method (%s): ", strings.Join(methods, "/")))
	}
	return prompt(in, "Method: ")
}

func printProfile(user *auth.User) {
	if user == nil {
		fmt.Println("Not signed in")
		return
	}
	fmt.Printf("\nSigned in as %s\n", user.Email)
	fmt.Printf("  id:             %s\n", user.ID)
	fmt.Printf("  phone:          %s\n", utils.Value(user.Phone))
	fmt.Printf("  email verified: %t\n", user.EmailVerified)
	fmt.Printf("  mfa enabled:    %t\n", user.MFAEnabled)
	if len(user.SocialProviders) > 0 {
		fmt.Printf("  providers:      %s\n", strings.Join(user.SocialProviders, ", "))
	}
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

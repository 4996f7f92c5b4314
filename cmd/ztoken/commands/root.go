package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hllvc/ztoken/internal/auth"
	"github.com/hllvc/ztoken/internal/config"
	"github.com/hllvc/ztoken/internal/prompt"
	"github.com/hllvc/ztoken/internal/secrets"
	"github.com/hllvc/ztoken/internal/servicetoken"
	"github.com/hllvc/ztoken/internal/tokencache"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "ztoken",
		Usage: "acquire and cache OAuth2 access tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelWarn.String(),
			},
		},
		Commands: []*cli.Command{
			tokenCommand(),
			listCommand(),
			deleteCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "print an access token, fetching a fresh one when no valid cached token exists",
		ArgsUsage: "[scope...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "name under which the token is cached",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"U"},
				Usage:   "username for the token request",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password for the token request (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "token service URL",
			},
			&cli.StringFlag{
				Name:    "realm",
				Aliases: []string{"r"},
				Usage:   "issuer realm",
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "skip TLS certificate verification",
			},
			&cli.BoolFlag{
				Name:    "refresh",
				Aliases: []string{"R"},
				Usage:   "ignore the cached token and request a fresh one",
			},
			&cli.BoolFlag{
				Name:  "no-keyring",
				Usage: "do not store the password in the OS keyring",
			},
		},
		Action: tokenAction,
	}
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	configStore, err := config.NewStore(cmd.String("config"))
	if err != nil {
		return err
	}

	s, err := loadSettings(configStore.Path(), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	cache, err := newTokenCache()
	if err != nil {
		return err
	}

	orchestrator, err := auth.New(cache, configStore, secrets.Keyring{}, prompt.Console{}, servicetoken.NewProvider())
	if err != nil {
		return err
	}

	user := s.User
	if user == "" {
		user = os.Getenv(auth.EnvOSUser)
	}

	record, err := orchestrator.GetNamedToken(ctx, auth.NamedTokenOptions{
		Name:       cmd.String("name"),
		Scopes:     cmd.Args().Slice(),
		Realm:      s.Realm,
		User:       user,
		Password:   cmd.String("password"),
		URL:        s.URL,
		Insecure:   s.Insecure,
		Refresh:    cmd.Bool("refresh"),
		UseKeyring: !cmd.Bool("no-keyring"),
		Prompt:     true,
	})
	if err != nil {
		return err
	}

	fmt.Println(record.AccessToken)
	return nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:   "list",
		Usage:  "list cached tokens and their remaining validity",
		Action: listAction,
	}
}

func listAction(_ context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	cache, err := newTokenCache()
	if err != nil {
		return err
	}

	names := cache.Names()
	sort.Strings(names)

	now := time.Now()
	for _, name := range names {
		record := cache.Get(name)
		if record == nil {
			continue
		}
		validity := "expired"
		if record.Valid(now) {
			validity = fmt.Sprintf("valid for %s", record.Remaining(now).Truncate(time.Second))
		}
		fmt.Printf("%-24s %s\n", name, validity)
	}
	return nil
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "remove a cached token",
		ArgsUsage: "<name>",
		Action:    deleteAction,
	}
}

func deleteAction(_ context.Context, cmd *cli.Command) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("token name required")
	}

	cache, err := newTokenCache()
	if err != nil {
		return err
	}
	return cache.Delete(name)
}

// newTokenCache creates the token cache at its default location.
func newTokenCache() (*tokencache.Cache, error) {
	cachePath, err := config.DefaultCachePath()
	if err != nil {
		return nil, err
	}
	return tokencache.New(cachePath)
}

// setupLogging installs a text slog handler on stderr at the requested level.
func setupLogging(cmd *cli.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

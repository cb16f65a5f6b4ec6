package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/licensegate/internal/commands"
	"github.com/angelmondragon/licensegate/pkg/adminclient"
	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/logger"
)

// ctlConfig is the subset of settings the command front end needs; it does not require database config.
type ctlConfig struct {
	AdminSecret string `envconfig:"LICENSEGATE_ADMIN_SECRET" required:"true"`
	LogLevel    string `envconfig:"LICENSEGATE_LOG_LEVEL" default:"warn"`
	Frontend    config.FrontendConfig
}

func main() {
	_ = godotenv.Load()

	caller := flag.String("as", "", "caller id the command runs as")
	roles := flag.String("roles", "", "comma separated role ids held by the caller")
	manage := flag.Bool("manage-guild", false, "caller holds the manage-server permission")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: licensectl -as <id> [flags] <command> [key=value ...]")
		fmt.Fprintln(flag.CommandLine.Output(), "       licensectl -as <id> [flags] -     (read commands from stdin)")
		flag.PrintDefaults()
	}
	flag.Parse()

	var cfg ctlConfig
	if err := envconfig.Process(config.EnvPrefix, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "licensectl",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
	})

	client, err := adminclient.New(cfg.Frontend.ServerURL, cfg.AdminSecret, adminclient.WithTimeout(cfg.Frontend.Timeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "admin client: %v\n", err)
		os.Exit(1)
	}

	dispatcher, err := commands.NewDispatcher(
		client.As(*caller),
		commands.RoleAdmin(cfg.Frontend.AdminRoleID, cfg.Frontend.AdminIDs),
		logg,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatcher: %v\n", err)
		os.Exit(1)
	}

	who := commands.Caller{ID: strings.TrimSpace(*caller), Roles: splitList(*roles), ManageGuild: *manage}
	ctx := context.Background()

	args := flag.Args()
	if len(args) == 1 && args[0] == "-" {
		if err := runLines(ctx, dispatcher, who, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "read commands: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if !runLine(ctx, dispatcher, who, strings.Join(quoteArgs(args), " "), os.Stdout) {
		os.Exit(1)
	}
}

func runLines(ctx context.Context, d *commands.Dispatcher, who commands.Caller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		runLine(ctx, d, who, line, out)
	}
	return scanner.Err()
}

func runLine(ctx context.Context, d *commands.Dispatcher, who commands.Caller, line string, out io.Writer) bool {
	name, options, err := commands.Parse(line)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}

	reply := d.Handle(ctx, commands.Command{
		ID:      uuid.NewString(),
		Name:    name,
		Caller:  who,
		Options: options,
	})
	fmt.Fprintln(out, reply.Content)
	if dm := reply.DirectMessage; dm != nil {
		fmt.Fprintf(out, "\n--- message for %s ---\n%s\n", dm.To, dm.Content)
	}
	return !strings.HasPrefix(reply.Content, "Error:")
}

// quoteArgs re-quotes shell arguments that contain spaces so Parse sees one value.
func quoteArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if key, value, ok := strings.Cut(arg, "="); ok && strings.ContainsAny(value, " \t") {
			arg = key + `="` + value + `"`
		}
		out = append(out, arg)
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

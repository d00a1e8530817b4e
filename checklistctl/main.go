package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bringyour/checklist/checklist"
)

const ChecklistCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(`Checklist control.

The default urls are:
    api_url: %s
    ws_url: %s
Values not given on the command line are read from the config file.

Usage:
    checklistctl login [options] [--token=<token>]
    checklistctl logout [options]
    checklistctl whoami [options]
    checklistctl open [options] <url>
    checklistctl use [options] <namespace>
    checklistctl list [options] [--search=<search>] [--all | --hide-completed] [--ungrouped]
    checklistctl add [options] <name> [--category=<category>]
    checklistctl edit [options] <uid> <name> [--category=<category>]
    checklistctl remove [options] <uid>
    checklistctl toggle [options] <uids>...
    checklistctl suggest [options] <text>
    checklistctl watch [options]
    checklistctl shell [options]
    checklistctl prefs [options] [--set-hide-completed=<bool>] [--set-grouped=<bool>]

Options:
    -h --help                        Show this screen.
    --version                        Show version.
    --config=<config>                Config file [default: ~/.checklist/config.yaml].
    --api_url=<api_url>
    --ws_url=<ws_url>
    --db_path=<db_path>              Durable state. Use :memory: for none.
    --commit_delay=<commit_delay>    Toggle undo window, e.g. 1500ms.
    -v --verbose                     Debug logging.
    --token=<token>                  Auth token. Prompted for when omitted.
    --search=<search>                Case-insensitive name filter.
    --all                            Show completed items.
    --hide-completed                 Hide completed items.
    --ungrouped                      Do not group by category.
    --category=<category>            Item category [default: other].
    --set-hide-completed=<bool>      Persist the hide completed preference.
    --set-grouped=<bool>             Persist the grouping preference.`,
		checklist.DefaultApiUrl,
		checklist.DefaultWsUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ChecklistCtlVersion)
	if err != nil {
		panic(err)
	}

	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	if verbose, _ := opts.Bool("--verbose"); verbose {
		flag.Set("v", strconv.Itoa(int(checklist.LogLevelDebug)))
	}

	if login_, _ := opts.Bool("login"); login_ {
		err = login(opts)
	} else if logout_, _ := opts.Bool("logout"); logout_ {
		err = logout(opts)
	} else if whoami_, _ := opts.Bool("whoami"); whoami_ {
		err = whoami(opts)
	} else if open_, _ := opts.Bool("open"); open_ {
		err = open(opts)
	} else if use_, _ := opts.Bool("use"); use_ {
		err = use(opts)
	} else if list_, _ := opts.Bool("list"); list_ {
		err = list(opts)
	} else if add_, _ := opts.Bool("add"); add_ {
		err = add(opts)
	} else if edit_, _ := opts.Bool("edit"); edit_ {
		err = edit(opts)
	} else if remove_, _ := opts.Bool("remove"); remove_ {
		err = remove(opts)
	} else if toggle_, _ := opts.Bool("toggle"); toggle_ {
		err = toggle(opts)
	} else if suggest_, _ := opts.Bool("suggest"); suggest_ {
		err = suggest(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(opts)
	} else if shell_, _ := opts.Bool("shell"); shell_ {
		err = shell(opts)
	} else if prefs_, _ := opts.Bool("prefs"); prefs_ {
		err = prefs(opts)
	}
	if err != nil {
		Err.Printf("%s\n", err)
		os.Exit(1)
	}
}

type Config struct {
	ApiUrl      string        `yaml:"api_url"`
	WsUrl       string        `yaml:"ws_url"`
	DbPath      string        `yaml:"db_path"`
	CommitDelay time.Duration `yaml:"commit_delay"`
}

func defaultConfig() *Config {
	return &Config{
		ApiUrl:      checklist.DefaultApiUrl,
		WsUrl:       checklist.DefaultWsUrl,
		DbPath:      "~/.checklist/state.db",
		CommitDelay: checklist.DefaultCommitDelay,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// the config file is optional. command line values override it
func loadConfig(opts docopt.Opts) (*Config, error) {
	config := defaultConfig()

	configPath, _ := opts.String("--config")
	configBytes, err := os.ReadFile(expandHome(configPath))
	if err == nil {
		if err := yaml.Unmarshal(configBytes, config); err != nil {
			return nil, fmt.Errorf("config %s: %w", configPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if apiUrl, err := opts.String("--api_url"); err == nil && apiUrl != "" {
		config.ApiUrl = apiUrl
	}
	if wsUrl, err := opts.String("--ws_url"); err == nil && wsUrl != "" {
		config.WsUrl = wsUrl
	}
	if dbPath, err := opts.String("--db_path"); err == nil && dbPath != "" {
		config.DbPath = dbPath
	}
	if commitDelayStr, err := opts.String("--commit_delay"); err == nil && commitDelayStr != "" {
		commitDelay, err := time.ParseDuration(commitDelayStr)
		if err != nil {
			return nil, fmt.Errorf("commit_delay: %w", err)
		}
		config.CommitDelay = commitDelay
	}
	return config, nil
}

func openStore(config *Config) (*checklist.SqliteKeyValueStore, error) {
	return checklist.OpenSqliteKeyValueStore(expandHome(config.DbPath))
}

func newClient(ctx context.Context, opts docopt.Opts) (*checklist.Client, func(), error) {
	config, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	kv, err := openStore(config)
	if err != nil {
		return nil, nil, err
	}

	settings := checklist.DefaultClientSettings()
	settings.ApiUrl = config.ApiUrl
	settings.WsUrl = config.WsUrl
	settings.ItemStoreSettings.CommitDelay = config.CommitDelay

	client, err := checklist.NewClient(ctx, kv, checklist.NewTimeScheduler(), settings)
	if err != nil {
		kv.Close()
		return nil, nil, err
	}
	closeClient := func() {
		client.Close()
		kv.Close()
	}
	return client, closeClient, nil
}

// creates a client with the mirror loaded for the stored namespace
func startClient(ctx context.Context, opts docopt.Opts) (*checklist.Client, func(), error) {
	client, closeClient, err := newClient(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Start(ctx, ""); err != nil {
		closeClient()
		return nil, nil, err
	}
	return client, closeClient, nil
}

func login(opts docopt.Opts) error {
	token, _ := opts.String("--token")
	if token == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("--token is required when stdin is not a terminal")
		}
		fmt.Print("Token: ")
		tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return err
		}
		token = strings.TrimSpace(string(tokenBytes))
	}
	if token == "" {
		return checklist.ErrNoToken
	}

	client, closeClient, err := newClient(context.Background(), opts)
	if err != nil {
		return err
	}
	defer closeClient()

	return client.SetToken(token)
}

func logout(opts docopt.Opts) error {
	client, closeClient, err := newClient(context.Background(), opts)
	if err != nil {
		return err
	}
	defer closeClient()

	return client.ClearToken()
}

func whoami(opts docopt.Opts) error {
	client, closeClient, err := newClient(context.Background(), opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if _, _, err := client.Namespace().Resolve(""); err != nil {
		return err
	}
	Out.Printf("namespace: %s\n", client.Namespace().Key())

	claims, err := checklist.ParseTokenUnverified(client.Credential().Token())
	if errors.Is(err, checklist.ErrNoToken) {
		Out.Printf("not logged in\n")
		return nil
	}
	if err != nil {
		// opaque tokens are valid
		Out.Printf("token: opaque\n")
		return nil
	}
	if claims.Username != "" {
		Out.Printf("username: %s\n", claims.Username)
	}
	if claims.Subject != "" {
		Out.Printf("subject: %s\n", claims.Subject)
	}
	if claims.ExpiresAt != nil {
		Out.Printf("expires: %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func open(opts docopt.Opts) error {
	rawUrl, _ := opts.String("<url>")

	ctx := context.Background()
	client, closeClient, err := newClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if _, _, err := client.Namespace().Resolve(""); err != nil {
		return err
	}
	clearedUrl, err := client.OpenUrl(ctx, rawUrl)
	if err != nil {
		return err
	}
	Out.Printf("%s\n", clearedUrl)
	return nil
}

func use(opts docopt.Opts) error {
	namespaceStr, _ := opts.String("<namespace>")
	key, err := checklist.ParseNamespaceKey(namespaceStr)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, closeClient, err := newClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if _, _, err := client.Namespace().Resolve(""); err != nil {
		return err
	}
	if _, err := client.SetNamespace(ctx, key); err != nil {
		return err
	}
	Out.Printf("%s (%d items)\n", key, len(client.Items()))
	return nil
}

func list(opts docopt.Opts) error {
	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	// flags apply to this listing only
	preferences := client.Preferences()
	if all, _ := opts.Bool("--all"); all {
		preferences.SetHideCompleted(false)
	}
	if hideCompleted, _ := opts.Bool("--hide-completed"); hideCompleted {
		preferences.SetHideCompleted(true)
	}
	if ungrouped, _ := opts.Bool("--ungrouped"); ungrouped {
		preferences.IsGrouped = false
	}
	if search, _ := opts.String("--search"); search != "" {
		preferences.SetSearchText(search)
	}

	view := checklist.BuildView(client.Items(), preferences)
	Out.Print(renderView(client.Namespace().Key(), view, preferences))
	return nil
}

func add(opts docopt.Opts) error {
	name, _ := opts.String("<name>")
	category, _ := opts.String("--category")

	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	item, err := client.Add(ctx, name, category)
	if err != nil {
		return err
	}
	Out.Printf("%s\n", item.Uid)
	return nil
}

func edit(opts docopt.Opts) error {
	uid, _ := opts.String("<uid>")
	name, _ := opts.String("<name>")
	category, _ := opts.String("--category")

	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	return client.Edit(ctx, uid, name, category)
}

func remove(opts docopt.Opts) error {
	uid, _ := opts.String("<uid>")

	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	return client.Remove(ctx, uid)
}

// toggles each uid in order and waits out the commit delay.
// a uid given twice cancels its own toggle
func toggle(opts docopt.Opts) error {
	uids, _ := opts["<uids>"].([]string)

	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	for _, uid := range uids {
		if _, ok := client.Store().Item(uid); !ok {
			return fmt.Errorf("%w: %s", checklist.ErrItemNotFound, uid)
		}
		client.Toggle(uid)
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, time.Minute)
	defer flushCancel()
	if err := client.Flush(flushCtx); err != nil {
		return err
	}

	var commitErr error
	for {
		select {
		case err := <-client.CommitErrors():
			Err.Printf("%s\n", err)
			commitErr = err
		default:
			for _, uid := range uids {
				if item, ok := client.Store().Item(uid); ok {
					Out.Printf("%s %s\n", uid, item.State())
				}
			}
			return commitErr
		}
	}
}

func suggest(opts docopt.Opts) error {
	text, _ := opts.String("<text>")

	ctx := context.Background()
	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	for _, category := range client.SuggestCategories(text) {
		Out.Printf("%s\n", category)
	}
	return nil
}

// renders the view on every change until interrupted
func watch(opts docopt.Opts) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, closeClient, err := startClient(ctx, opts)
	if err != nil {
		return err
	}
	defer closeClient()

	render := func() {
		preferences := client.Preferences()
		view := client.View()
		Out.Print(renderView(client.Namespace().Key(), view, preferences))
	}
	render()

	changes := make(chan struct{}, 1)
	removeCallback := client.AddViewChangeCallback(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer removeCallback()

	go client.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			render()
		case err := <-client.CommitErrors():
			Err.Printf("%s\n", err)
		}
	}
}

func prefs(opts docopt.Opts) error {
	client, closeClient, err := newClient(context.Background(), opts)
	if err != nil {
		return err
	}
	defer closeClient()

	if hideCompletedStr, err := opts.String("--set-hide-completed"); err == nil && hideCompletedStr != "" {
		hideCompleted, err := strconv.ParseBool(hideCompletedStr)
		if err != nil {
			return fmt.Errorf("--set-hide-completed: %w", err)
		}
		if err := client.SetHideCompleted(hideCompleted); err != nil {
			return err
		}
	}
	if groupedStr, err := opts.String("--set-grouped"); err == nil && groupedStr != "" {
		grouped, err := strconv.ParseBool(groupedStr)
		if err != nil {
			return fmt.Errorf("--set-grouped: %w", err)
		}
		if err := client.SetGrouped(grouped); err != nil {
			return err
		}
	}

	preferences := client.Preferences()
	Out.Printf("hideCompleted: %t\n", preferences.HideCompleted)
	Out.Printf("isGrouped: %t\n", preferences.IsGrouped)
	return nil
}

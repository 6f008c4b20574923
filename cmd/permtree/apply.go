package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rjeczalik/notify"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/permtree/permtree/internal/acl"
	"github.com/permtree/permtree/internal/directory"
	"github.com/permtree/permtree/internal/fsaccess"
	"github.com/permtree/permtree/internal/rulefile"
	"github.com/permtree/permtree/internal/rulesource"
	"github.com/permtree/permtree/internal/utils"
)

// watchDebounce coalesces editor write bursts into one re-run.
const watchDebounce = 500 * time.Millisecond

func init() {
	rootCmd.AddCommand(newApplyCmd())
}

func newApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply [targets...]",
		Short: "Apply the rule file's ACLs to the target subtrees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			showHeader()
			return runApply(cmd.Context(), args)
		},
	}

	flags := applyCmd.Flags()
	flags.SortFlags = false
	flags.StringP("rules", "r", "", "rule file: local path or s3://bucket/key")
	flags.BoolP("dry-run", "n", false, "compute and log changes without writing")
	flags.BoolP("watch", "w", false, "re-run whenever the rule file changes")
	flags.String("report", "", "write a JSON run report to this path")
	flags.String("ignore-file", "", "gitignore-syntax file of paths to skip")
	flags.String("directory-db", "", "sqlite principal directory database")
	flags.String("directory-url", "", "HTTP principal directory base URL")
	flags.String("admin-group", defaultAdminGroup, "administrative group name")
	flags.StringSlice("whitelist", nil, "preserved principals: GUID, u:name or g:name")
	flags.String("whitelist-file", "", "YAML file listing preserved principals")
	flags.String("acl-xattr", defaultACLXattr, "extended attribute holding the ACL")
	flags.Int("cache-size", directory.DefaultCacheSize, "directory lookup cache size")

	viper.BindPFlag("rules", flags.Lookup("rules"))
	viper.BindPFlag("dry_run", flags.Lookup("dry-run"))
	viper.BindPFlag("watch", flags.Lookup("watch"))
	viper.BindPFlag("report", flags.Lookup("report"))
	viper.BindPFlag("ignore_file", flags.Lookup("ignore-file"))
	viper.BindPFlag("directory_db", flags.Lookup("directory-db"))
	viper.BindPFlag("directory_url", flags.Lookup("directory-url"))
	viper.BindPFlag("admin_group", flags.Lookup("admin-group"))
	viper.BindPFlag("whitelist", flags.Lookup("whitelist"))
	viper.BindPFlag("whitelist_file", flags.Lookup("whitelist-file"))
	viper.BindPFlag("acl_xattr", flags.Lookup("acl-xattr"))
	viper.BindPFlag("cache_size", flags.Lookup("cache-size"))

	return applyCmd
}

func runApply(ctx context.Context, args []string) error {
	rulesRef := viper.GetString("rules")
	if rulesRef == "" {
		return errors.New("no rule file configured, use --rules")
	}

	targets := args
	if len(targets) == 0 {
		targets = viper.GetStringSlice("targets")
	}
	targets, err := expandTargets(targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no targets configured")
	}

	dir, closeDir, err := buildDirectory()
	if err != nil {
		return err
	}
	defer closeDir()

	watch := viper.GetBool("watch")
	if watch && rulesource.IsS3(rulesRef) {
		return errors.New("--watch requires a local rule file")
	}

	if err := runOnce(ctx, dir, rulesRef, targets); err != nil {
		return err
	}
	if !watch {
		return nil
	}
	return watchAndRerun(ctx, dir, rulesRef, targets)
}

// runOnce loads the rule file, builds the rule set and performs one full
// single-threaded pass over every target.
func runOnce(ctx context.Context, dir acl.Directory, rulesRef string, targets []string) error {
	dryRun := viper.GetBool("dry_run")

	rules, err := loadRules(ctx, rulesRef)
	if err != nil {
		return err
	}

	adminRef := acl.PrincipalRef{Kind: acl.PrincipalGroup, Name: viper.GetString("admin_group")}
	ruleSet, err := acl.BuildRuleSet(ctx, dir, rules, adminRef)
	if err != nil {
		return fmt.Errorf("build rule set: %w", err)
	}
	slog.Info("rule set built", "rules", ruleSet.Len(), "admin", adminRef)

	whitelistEntries := viper.GetStringSlice("whitelist")
	if wlFile := viper.GetString("whitelist_file"); wlFile != "" {
		fileEntries, err := loadWhitelistFile(wlFile)
		if err != nil {
			return err
		}
		whitelistEntries = append(whitelistEntries, fileEntries...)
	}
	whitelist, err := buildWhitelist(ctx, dir, whitelistEntries)
	if err != nil {
		return err
	}

	var ignore *gitignore.GitIgnore
	if ignoreFile := viper.GetString("ignore_file"); ignoreFile != "" {
		ignore, err = gitignore.CompileIgnoreFile(ignoreFile)
		if err != nil {
			return fmt.Errorf("ignore file %q: %w", ignoreFile, err)
		}
	}

	engine, err := acl.NewEngine(&acl.Config{
		FS:        fsaccess.New(viper.GetString("acl_xattr")),
		Rules:     ruleSet,
		Whitelist: whitelist,
		Logger:    slog.Default(),
		Ignore:    ignore,
		DryRun:    dryRun,
	})
	if err != nil {
		return err
	}

	if !dryRun {
		unlock, err := acquireRunLock(rulesRef)
		if err != nil {
			return err
		}
		defer unlock()
	}

	stats, err := engine.Run(ctx, targets)
	if stats != nil {
		printSummary(stats, dryRun)
		if reportPath := viper.GetString("report"); reportPath != "" {
			if werr := writeReport(reportPath, stats); werr != nil {
				slog.Error("write report", "path", reportPath, "error", werr)
			}
		}
	}
	return err
}

// watchAndRerun blocks on rule-file change events, debounces them and re-runs
// the full batch. Each run is a fresh pass with a freshly built rule set.
func watchAndRerun(ctx context.Context, dir acl.Directory, rulesRef string, targets []string) error {
	events := make(chan notify.EventInfo, 16)
	watchDir := filepath.Dir(rulesRef)
	if err := notify.Watch(watchDir, events, notify.Write, notify.Create, notify.Rename); err != nil {
		return fmt.Errorf("watch %q: %w", watchDir, err)
	}
	defer notify.Stop(events)

	slog.Info("watching rule file", "path", rulesRef)

	ruleAbs, err := filepath.Abs(rulesRef)
	if err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if ev.Path() != ruleAbs {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			slog.Info("rule file changed, re-running", "path", rulesRef)
			if err := runOnce(ctx, dir, rulesRef, targets); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				slog.Error("run failed", "error", err)
			}
		}
	}
}

func loadRules(ctx context.Context, rulesRef string) ([]*acl.Rule, error) {
	rd, err := rulesource.Open(ctx, rulesRef)
	if err != nil {
		return nil, fmt.Errorf("open rules %q: %w", rulesRef, err)
	}
	defer rd.Close()

	// relative rule paths resolve against the local rule file's directory;
	// an S3 rule file has no local anchor, so they resolve against "/"
	base := "/"
	if !rulesource.IsS3(rulesRef) {
		abs, err := filepath.Abs(filepath.Dir(rulesRef))
		if err != nil {
			return nil, err
		}
		base = filepath.ToSlash(abs)
	}

	rules, err := rulefile.Parse(rd, base)
	if err != nil {
		return nil, fmt.Errorf("parse rules %q: %w", rulesRef, err)
	}
	return rules, nil
}

// buildDirectory constructs the configured principal directory backend,
// wrapped in an LRU cache.
func buildDirectory() (acl.Directory, func(), error) {
	var backend acl.Directory
	closeFn := func() {}

	switch {
	case viper.GetString("directory_url") != "":
		backend = directory.NewHTTP(viper.GetString("directory_url"))
	case viper.GetString("directory_db") != "":
		dbPath, err := utils.ResolvePath(viper.GetString("directory_db"))
		if err != nil {
			return nil, nil, err
		}
		sqlite, err := directory.OpenSQLite(dbPath)
		if err != nil {
			return nil, nil, err
		}
		backend = sqlite
		closeFn = func() {
			if err := sqlite.Close(); err != nil {
				slog.Error("close directory db", "error", err)
			}
		}
	default:
		return nil, nil, errors.New("no principal directory configured, use --directory-db or --directory-url")
	}

	cached, err := directory.NewCached(backend, viper.GetInt("cache_size"))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return cached, closeFn, nil
}

// buildWhitelist resolves configured whitelist entries. Entries are either
// raw GUIDs or u:/g: name references resolved through the directory.
func buildWhitelist(ctx context.Context, dir acl.Directory, entries []string) (mapset.Set[acl.PrincipalID], error) {
	set := mapset.NewThreadUnsafeSet[acl.PrincipalID]()
	for _, entry := range entries {
		if id, err := uuid.Parse(entry); err == nil {
			set.Add(id)
			continue
		}

		kind, name, ok := strings.Cut(entry, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed whitelist entry %q, want GUID, u:name or g:name", entry)
		}
		var pk acl.PrincipalKind
		switch kind {
		case "u":
			pk = acl.PrincipalUser
		case "g":
			pk = acl.PrincipalGroup
		default:
			return nil, fmt.Errorf("malformed whitelist entry %q, want GUID, u:name or g:name", entry)
		}

		id, err := dir.Resolve(ctx, pk, name)
		if err != nil {
			return nil, fmt.Errorf("resolve whitelist entry %q: %w", entry, err)
		}
		set.Add(id)
	}
	return set, nil
}

// loadWhitelistFile reads a YAML list of whitelist entries, either a bare
// sequence or a document with a top-level `whitelist:` key.
func loadWhitelistFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("whitelist file: %w", err)
	}

	var entries []string
	if err := yaml.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var doc struct {
		Whitelist []string `yaml:"whitelist"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("whitelist file %q: %w", path, err)
	}
	return doc.Whitelist, nil
}

// expandTargets expands doublestar glob patterns among the configured
// targets; literal paths pass through untouched.
func expandTargets(targets []string) ([]string, error) {
	var out []string
	for _, t := range targets {
		if !strings.ContainsAny(t, "*?[{") {
			out = append(out, t)
			continue
		}

		base, pattern := doublestar.SplitPattern(t)
		matches, err := doublestar.Glob(os.DirFS(base), pattern)
		if err != nil {
			return nil, fmt.Errorf("expand target %q: %w", t, err)
		}
		if len(matches) == 0 {
			slog.Warn("target pattern matched nothing", "pattern", t)
		}
		for _, m := range matches {
			out = append(out, filepath.ToSlash(filepath.Join(base, m)))
		}
	}
	return out, nil
}

// acquireRunLock takes the single-run process lock for mutating runs.
func acquireRunLock(rulesRef string) (func(), error) {
	lockPath := rulesRef + ".lock"
	if rulesource.IsS3(rulesRef) {
		lockPath = filepath.Join(os.TempDir(), "permtree.lock")
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %q: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("another mutating run holds %q", lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("release run lock", "path", lockPath, "error", err)
		}
	}, nil
}

func printSummary(stats *acl.RunStats, dryRun bool) {
	green := color.New(color.FgHiGreen).SprintFunc()
	yellow := color.New(color.FgHiYellow).SprintFunc()
	red := color.New(color.FgHiRed).SprintFunc()

	changed := green(humanize.Comma(int64(stats.Applied)))
	if dryRun {
		changed = yellow(humanize.Comma(int64(stats.WouldApply))) + " (dry run)"
	}

	fmt.Printf("visited %s nodes in %s: %s changed, %s up to date, %s ignored",
		humanize.Comma(int64(stats.Visited)),
		stats.Took.Round(time.Millisecond),
		changed,
		humanize.Comma(int64(stats.Skipped)),
		humanize.Comma(int64(stats.Ignored)),
	)
	if stats.WriteFailed > 0 {
		fmt.Printf(", %s failed", red(humanize.Comma(int64(stats.WriteFailed))))
	}
	fmt.Println()
}

func writeReport(path string, stats *acl.RunStats) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fd.Close()
	return encodeReport(fd, stats)
}

func encodeReport(w io.Writer, stats *acl.RunStats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

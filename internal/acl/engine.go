package acl

import (
	"errors"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

var (
	ErrNoFileAccess = errors.New("no file access layer")
	ErrNoRuleSet    = errors.New("no rule set")
)

// Config assembles an Engine. FS and Rules are required.
type Config struct {
	FS        FileAccess
	Rules     *RuleSet
	Whitelist mapset.Set[PrincipalID]
	Logger    *slog.Logger
	Ignore    *gitignore.GitIgnore
	DryRun    bool
}

// Engine resolves and applies access-control rules over file-system trees.
// One Engine performs synchronous, single-threaded runs; nothing in it is
// shared across nodes except the read-only rule set and whitelist.
type Engine struct {
	fs        FileAccess
	rules     *RuleSet
	whitelist mapset.Set[PrincipalID]
	log       *slog.Logger
	ignore    *gitignore.GitIgnore
	dryRun    bool
}

// NewEngine creates an engine from the given config.
func NewEngine(cfg *Config) (*Engine, error) {
	if cfg.FS == nil {
		return nil, ErrNoFileAccess
	}
	if cfg.Rules == nil {
		return nil, ErrNoRuleSet
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	whitelist := cfg.Whitelist
	if whitelist == nil {
		whitelist = mapset.NewThreadUnsafeSet[PrincipalID]()
	}

	return &Engine{
		fs:        cfg.FS,
		rules:     cfg.Rules,
		whitelist: whitelist,
		log:       logger,
		ignore:    cfg.Ignore,
		dryRun:    cfg.DryRun,
	}, nil
}

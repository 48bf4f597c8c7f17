package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/mwhitt/crew/internal/config"
	"github.com/mwhitt/crew/internal/conversation"
	"github.com/mwhitt/crew/internal/credit"
	"github.com/mwhitt/crew/internal/decompose"
	"github.com/mwhitt/crew/internal/gateway"
	"github.com/mwhitt/crew/internal/router"
	"github.com/mwhitt/crew/internal/state"
	"github.com/mwhitt/crew/internal/workflow"
)

// app wires the engine components for one CLI invocation.
type app struct {
	cfg        *config.Config
	roster     *config.Roster
	db         *state.DB
	store      *conversation.Store
	ledger     *credit.Ledger
	gw         *gateway.Gateway
	tracker    *gateway.TokenTracker
	decomposer *decompose.Decomposer
	executor   *workflow.Executor
	router     *router.Router
}

// newApp builds the full stack. Commands that never call the model can
// use newStorageApp instead and skip API-key requirements.
func newApp() (*app, error) {
	a, err := newStorageApp()
	if err != nil {
		return nil, err
	}

	client, err := gateway.NewClient(gateway.ClientConfig{
		Model:         anthropic.Model(a.cfg.Anthropic.Model),
		APIKey:        a.cfg.Anthropic.APIKey,
		UseAWSBedrock: a.cfg.Anthropic.UseBedrock,
		AWSRegion:     a.cfg.Anthropic.AWSRegion,
		AWSProfile:    a.cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create model client: %w", err)
	}

	a.gw = gateway.New(client,
		gateway.WithMaxAttempts(a.cfg.Gateway.MaxAttempts),
		gateway.WithCallTimeout(a.cfg.Gateway.CallTimeout),
	)
	a.tracker = client.Tracker()
	a.decomposer = decompose.NewDecomposer(a.gw, a.store, a.db, a.roster, a.cfg.Defaults.WindowSize)
	a.executor = workflow.NewExecutor(a.gw, a.store, a.ledger, a.db, a.roster, a.cfg.Workflow.MaxParallel)
	a.router = router.NewRouter(a.gw, a.store, a.roster, a.cfg.Workflow.MaxHops)
	return a, nil
}

// newStorageApp opens config, roster, and the database without a model
// client.
func newStorageApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	roster, err := loadRoster()
	if err != nil {
		return nil, fmt.Errorf("load agent roster: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{
		cfg:    cfg,
		roster: roster,
		db:     db,
		store:  conversation.NewStore(db),
		ledger: credit.NewLedger(db),
	}, nil
}

// newStatusExecutor builds an executor over storage only. Read and
// state-transition paths never touch the model, so no client is wired.
func newStatusExecutor(a *app) *workflow.Executor {
	return workflow.NewExecutor(nil, a.store, a.ledger, a.db, a.roster, 0)
}

// Close releases the database.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// openDB prefers a project database under .crew/, falling back to the
// global one.
func openDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	projectPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(filepath.Dir(projectPath)); err == nil {
		return state.Open(projectPath)
	}
	return state.Open(state.GlobalDBPath())
}

// loadRoster reads configs/agents.yaml from the working directory when
// present; otherwise the built-in roster applies.
func loadRoster() (*config.Roster, error) {
	path := filepath.Join("configs", "agents.yaml")
	if _, err := os.Stat(path); err != nil {
		return config.DefaultRoster(), nil
	}
	return config.LoadRoster(path)
}

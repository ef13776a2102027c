package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/audit"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/configfile"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/deploy"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/engine"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/flags"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/rollback"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/runner"
	"github.com/ajdoyl2/data-practitioner-agent-system-sub006/internal/telemetry"
)

// workspace bundles the wired-up collaborators for one .dpa directory.
type workspace struct {
	dir   string
	cfg   *configfile.Config
	aud   *audit.Logger
	store *flags.Store
}

// resolveWorkspaceDir finds the .dpa directory: --dir flag (or DPA_DIR
// via viper) wins, otherwise walk up from the working directory,
// otherwise ./.dpa.
func resolveWorkspaceDir() string {
	if workspaceFlag != "" {
		return workspaceFlag
	}

	cwd, err := os.Getwd()
	if err != nil {
		return configfile.DirName
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, configfile.DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return filepath.Join(cwd, configfile.DirName)
}

// openWorkspace loads the workspace config and constructs the flag
// store and audit logger. The directory does not have to exist yet;
// commands that write will create it.
func openWorkspace() (*workspace, error) {
	dir := resolveWorkspaceDir()

	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading workspace config: %w", err)
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
	}

	aud := audit.NewLogger(cfg.AuditLogPath(dir))
	return &workspace{
		dir:   dir,
		cfg:   cfg,
		aud:   aud,
		store: flags.NewStore(cfg.RegistryPath(dir), aud),
	}, nil
}

// mustOpenWorkspace is openWorkspace for command Run closures.
func mustOpenWorkspace() *workspace {
	ws, err := openWorkspace()
	if err != nil {
		FatalErrorRespectJSON("%v", err)
	}
	return ws
}

func (ws *workspace) rollbackOrchestrator() (*rollback.Orchestrator, error) {
	mappings, err := rollback.LoadMappings(ws.cfg.StoriesPath(ws.dir))
	if err != nil {
		return nil, fmt.Errorf("loading story mappings: %w", err)
	}
	run := runner.New(ws.cfg.ScriptTimeout())
	return rollback.New(mappings, ws.cfg.ScriptsPath(ws.dir), ws.store, run, ws.aud), nil
}

func (ws *workspace) deployOrchestrator() *deploy.Orchestrator {
	client := engine.NewCLIClient(ws.cfg.Engine(), ws.cfg.EngineProjectPath, ws.cfg.EngineTimeout())
	log := deploy.NewLog(ws.cfg.DeployLogPath(ws.dir))

	opts := []deploy.Option{deploy.WithShadowTests(ws.cfg.ShadowTests)}
	if tracker, err := telemetry.NewCostTracker(); err == nil {
		opts = append(opts, deploy.WithCostTracker(tracker))
	} else {
		WarnError("cost tracking unavailable: %v", err)
	}
	return deploy.New(client, log, ws.aud, ws.dir, opts...)
}

// ensureDir creates the workspace directory if missing.
func (ws *workspace) ensureDir() error {
	return os.MkdirAll(ws.dir, 0750)
}

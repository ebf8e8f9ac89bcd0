// Package runtime implements the Runtime Context (spec §4.L): the single
// owned, process-wide wiring that bootstrap constructs once and every
// engine call is handed explicitly thereafter (spec §9's redesign away
// from the teacher's "global mutable runtime exposed via accessor
// helpers" toward one owned Context passed by reference, with a
// convenience accessor guarded by a one-time-init check).
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/buffer"
	cmgr "github.com/DodgyBadger/AssistantMD-sub001/engine/context"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/input"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/llm"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/pattern"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/provider"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/router"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/scheduler"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/step"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/tooladapter"
	"github.com/DodgyBadger/AssistantMD-sub001/engine/workflow"
	"github.com/DodgyBadger/AssistantMD-sub001/pkg/config"
	"github.com/DodgyBadger/AssistantMD-sub001/pkg/logger"
)

// Roots is the minimal pre-bootstrap state spec §4.L requires callers to
// set before any path access: "before bootstrap, callers must have called
// a set_bootstrap_roots primitive or pre-bootstrap path access fails with
// RuntimeStateError".
type Roots struct {
	DataRoot   string
	SystemRoot string
}

// Config is the RuntimeConfig spec §4.L names:
// `{data_root, system_root, scheduler_worker_limit, features}`.
type Config struct {
	DataRoot             string
	SystemRoot           string
	SchedulerWorkerLimit int
	Features             map[string]bool

	// Tools is the concrete tool registry (web search, code execution,
	// file I/O — spec §1 Non-goals: "individual tool implementations" are
	// out of scope for this repo). Callers of this package supply their
	// own implementations of tooladapter.Tool; an empty/nil map is valid
	// and simply means no step's `@tools` directive resolves to anything.
	Tools map[string]tooladapter.Tool

	Log logger.Config
}

// ReloadResult is what the reload primitive returns (spec §4.L: "a reload
// primitive refreshes settings/model caches, timestamps
// last_config_reload, and returns a structured result").
type ReloadResult struct {
	LastConfigReload time.Time
	ModelAliases     int
	VaultsDiscovered int
	Errors           []string
}

// vaultStack is every persistent per-vault component bound to one
// core.Vault: the Buffer Store, Pending State, and Router. The Pattern
// Resolver, Input Resolver, LLM Gateway, and Step Engine are rebuilt per
// run from these
// (§4.A's week_start_day is a per-workflow frontmatter knob, so the
// Pattern Resolver — which a Step Engine closes over — cannot be a fixed
// per-vault singleton; rebuilding it from these cheap, stateless
// references costs nothing per run).
type vaultStack struct {
	name    string
	vault   *core.Vault
	buffers *buffer.Store
	pending *input.PendingStore
	router  *router.Router
}

// Context is the Runtime Context: process-wide wiring constructed once at
// Bootstrap and passed explicitly to every engine call (spec §9).
type Context struct {
	cfg   Config
	loc   *time.Location
	clock core.Clock
	log   logger.Logger

	mu          sync.RWMutex
	settingsMgr *config.Manager
	settings    *config.Settings
	secrets     *config.Secrets
	providers   *provider.Registry

	workflowLoader *workflow.Loader
	contextLoader  *cmgr.Loader
	cache          *cmgr.Cache
	history        *cmgr.History

	vaults map[string]*vaultStack

	jobStore  *scheduler.Store
	scheduler *scheduler.Scheduler

	lastConfigReload time.Time
}

var (
	globalMu    sync.RWMutex
	globalRoots *Roots
	globalCtx   *Context
)

// errNotBootstrapped is the RuntimeStateError spec §4.L and §7 require
// for pre-bootstrap access.
func errNotBootstrapped(what string) error {
	return core.NewError(
		fmt.Errorf("%s accessed before bootstrap", what),
		core.CodeRuntimeStateError,
		map[string]any{"component": what},
	)
}

// SetBootstrapRoots records data_root/system_root before full Bootstrap
// runs, per spec §4.L. Bootstrap calls this itself, so callers normally
// never need to call it directly; it exists as its own primitive for
// early code paths (e.g. a CLI flag validator) that only need the roots.
func SetBootstrapRoots(dataRoot, systemRoot string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRoots = &Roots{DataRoot: dataRoot, SystemRoot: systemRoot}
}

// BootstrapRoots returns the roots set by SetBootstrapRoots/Bootstrap, or
// RuntimeStateError if neither has run yet.
func BootstrapRoots() (Roots, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalRoots == nil {
		return Roots{}, errNotBootstrapped("bootstrap roots")
	}
	return *globalRoots, nil
}

// Current returns the process-wide Context built by the last successful
// Bootstrap call, or RuntimeStateError if Bootstrap has never run — the
// "convenience accessor guarded by a one-time-init check" spec §9 calls
// for alongside explicit passing.
func Current() (*Context, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalCtx == nil {
		return nil, errNotBootstrapped("runtime context")
	}
	return globalCtx, nil
}

// Bootstrap constructs the Runtime Context: loads settings/secrets,
// builds the provider registry, discovers vaults, and wires the
// Workflow/Context Loaders and Scheduler against them. It replaces any
// previously bootstrapped Context as the process-wide singleton.
func Bootstrap(ctx context.Context, cfg Config) (*Context, error) {
	if cfg.DataRoot == "" || cfg.SystemRoot == "" {
		return nil, errors.New("runtime: data_root and system_root are required")
	}
	if cfg.SchedulerWorkerLimit <= 0 {
		cfg.SchedulerWorkerLimit = 4
	}
	SetBootstrapRoots(cfg.DataRoot, cfg.SystemRoot)

	rc := &Context{cfg: cfg, vaults: map[string]*vaultStack{}}
	if err := rc.loadSettings(ctx); err != nil {
		return nil, err
	}
	rc.log = logger.NewLogger(rc.cfg.Log)
	rc.clock = core.NewSystemClock(rc.loc)

	vaultRefs, err := discoverVaults(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("runtime: discover vaults: %w", err)
	}
	for _, vr := range vaultRefs {
		rc.vaults[vr.name] = vr
	}

	rc.workflowLoader = workflow.New()
	systemVault, err := core.NewVault(cfg.SystemRoot)
	if err != nil {
		return nil, fmt.Errorf("runtime: system_root: %w", err)
	}
	rc.contextLoader = cmgr.NewLoader(systemVault)
	rc.cache = cmgr.NewCache(rc.clock)
	rc.history = cmgr.NewHistory()

	jobStorePath := filepath.Join(cfg.SystemRoot, "scheduler", "jobs.json")
	store, err := scheduler.NewStore(jobStorePath, rc.loc)
	if err != nil {
		return nil, fmt.Errorf("runtime: open job store: %w", err)
	}
	rc.jobStore = store
	rc.scheduler = scheduler.New(store, rc.clock, rc.loc, cfg.SchedulerWorkerLimit, rc.runFromScheduler)

	if _, err := rc.Rescan(ctx); err != nil {
		return nil, fmt.Errorf("runtime: initial rescan: %w", err)
	}

	globalMu.Lock()
	globalCtx = rc
	globalMu.Unlock()
	return rc, nil
}

func (rc *Context) loadSettings(ctx context.Context) error {
	mgr := config.NewManager(config.NewService())
	settingsPath := filepath.Join(rc.cfg.SystemRoot, "settings.yaml")
	settings, err := mgr.Load(ctx,
		config.NewDefaultProvider(),
		config.NewYAMLProvider(settingsPath),
		config.NewEnvProvider("ASSISTANTMD_"),
	)
	if err != nil {
		return fmt.Errorf("runtime: load settings: %w", err)
	}
	secrets, err := config.LoadSecrets(filepath.Join(rc.cfg.SystemRoot, "secrets.yaml"))
	if err != nil {
		return fmt.Errorf("runtime: load secrets: %w", err)
	}
	registry, err := buildProviderRegistry(settings, secrets)
	if err != nil {
		return fmt.Errorf("runtime: build provider registry: %w", err)
	}
	loc, err := time.LoadLocation(settings.Settings.Timezone)
	if err != nil {
		loc = time.UTC
	}

	rc.mu.Lock()
	rc.settingsMgr = mgr
	rc.settings = settings
	rc.secrets = secrets
	rc.providers = registry
	rc.loc = loc
	rc.mu.Unlock()
	return nil
}

func buildProviderRegistry(settings *config.Settings, secrets *config.Secrets) (*provider.Registry, error) {
	configs := make(map[string]provider.Config, len(settings.Models))
	for alias, m := range settings.Models {
		apiKey := ""
		if pc, ok := settings.Providers[m.Provider]; ok && pc.SecretKey != "" {
			apiKey = secrets.Values[pc.SecretKey]
		}
		configs[alias] = provider.Config{
			Provider: provider.Name(m.Provider),
			Model:    m.Model,
			APIKey:   apiKey,
			APIURL:   m.APIURL,
		}
	}
	return provider.NewRegistry(configs)
}

// Reload refreshes settings/secrets/model caches (spec §4.L) and returns
// a structured result. It does not re-discover vaults or rescan workflow
// files — that is Rescan's job, invoked separately by the host.
func (rc *Context) Reload(ctx context.Context) (*ReloadResult, error) {
	result := &ReloadResult{}
	if err := rc.loadSettings(ctx); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	rc.mu.RLock()
	result.ModelAliases = len(rc.settings.Models)
	rc.mu.RUnlock()
	result.VaultsDiscovered = len(rc.vaults)
	rc.mu.Lock()
	rc.lastConfigReload = rc.clock.Now()
	result.LastConfigReload = rc.lastConfigReload
	rc.mu.Unlock()
	return result, nil
}

// Rescan runs the Workflow Loader and Context Loader across every
// discovered vault, then reconciles the Scheduler against the refreshed
// workflow index (spec §4.J "rescan() is idempotent", §4.K reconcile).
func (rc *Context) Rescan(ctx context.Context) (*workflow.LoadResult, error) {
	refs := rc.vaultRefs()
	result, err := rc.workflowLoader.Rescan(ctx, refs)
	if err != nil {
		return result, err
	}
	if _, err := rc.contextLoader.Rescan(ctx, refs); err != nil {
		return result, err
	}
	rc.scheduler.Reconcile(rc.workflowLoader.List(), rc.cfg.DataRoot)
	return result, nil
}

// Workflows returns every currently-loaded Workflow Definition, for a
// host's `list` surface or diagnostics.
func (rc *Context) Workflows() []*workflow.Definition {
	return rc.workflowLoader.List()
}

// Validate performs a non-mutating dry-run scan of every vault's
// workflows, without touching the live Workflow Loader index (spec §6
// "validate"). Unlike Rescan it never updates what RunWorkflow resolves.
func (rc *Context) Validate(ctx context.Context) (*workflow.LoadResult, error) {
	return rc.workflowLoader.Validate(ctx, rc.vaultRefs())
}

func (rc *Context) vaultRefs() []workflow.VaultRef {
	names := make([]string, 0, len(rc.vaults))
	for name := range rc.vaults {
		names = append(names, name)
	}
	sort.Strings(names)
	refs := make([]workflow.VaultRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, workflow.VaultRef{Name: name, Vault: rc.vaults[name].vault})
	}
	return refs
}

// StartScheduler launches the Scheduler's ticking loop (spec §5);
// canceling ctx stops it.
func (rc *Context) StartScheduler(ctx context.Context) {
	interval := 30 * time.Second
	rc.mu.RLock()
	if rc.settings != nil && rc.settings.Settings.SchedulerTickInterval > 0 {
		interval = rc.settings.Settings.SchedulerTickInterval
	}
	rc.mu.RUnlock()
	rc.scheduler.Start(ctx, interval)
}

// runFromScheduler adapts scheduler.RunFunc to RunWorkflow, logging
// rather than propagating errors: spec §7 "the Scheduler treats a failed
// run as completed for the purpose of cadence; it does not auto-retry".
func (rc *Context) runFromScheduler(ctx context.Context, globalID, _ string) {
	if _, err := rc.RunWorkflow(ctx, globalID, step.CauseScheduled, ""); err != nil {
		rc.log.Error("scheduled run failed", "global_id", globalID, "error", err)
	}
}

// RunWorkflow is the engine->host `run_workflow` entry point (spec §6).
// stepName, when non-empty, restricts execution to that single step
// (cause becomes CauseSingleStep regardless of what was passed).
func (rc *Context) RunWorkflow(
	ctx context.Context,
	globalID string,
	cause step.Cause,
	stepName string,
) (*step.RunRecord, error) {
	def, ok := rc.workflowLoader.Get(globalID)
	if !ok {
		return nil, fmt.Errorf("runtime: workflow %q is not loaded", globalID)
	}
	vs, ok := rc.vaults[def.Vault]
	if !ok {
		return nil, fmt.Errorf("runtime: vault %q for workflow %q is not known", def.Vault, globalID)
	}
	vs.buffers.ClearRun()
	eng := rc.buildStepEngine(vs, def.WeekStartDay)

	if stepName != "" {
		for _, s := range def.Steps {
			if s.Heading == stepName {
				res := eng.RunStep(ctx, globalID, def.Instructions, s)
				id, err := core.NewID()
				if err != nil {
					return nil, err
				}
				now := rc.clock.Now()
				record := &step.RunRecord{
					ID: id, WorkflowGlobalID: globalID, Cause: step.CauseSingleStep,
					StartedAt: now, FinishedAt: now, Steps: []step.StepResult{res},
				}
				if res.Err != nil {
					return record, res.Err
				}
				return record, nil
			}
		}
		return nil, fmt.Errorf("runtime: workflow %q has no step %q", globalID, stepName)
	}

	return eng.RunWorkflow(ctx, def.Doc, globalID, cause, "")
}

// BuildContext is the engine->host `build_context` entry point (spec §6).
func (rc *Context) BuildContext(
	ctx context.Context,
	templateGlobalID string,
	sessionID string,
	history []cmgr.Turn,
	latestUserMessage string,
) (*cmgr.Result, error) {
	tmpl, ok := rc.contextLoader.Get(templateGlobalID)
	if !ok {
		return nil, fmt.Errorf("runtime: context template %q is not loaded", templateGlobalID)
	}
	vs, ok := rc.vaults[tmpl.Vault]
	if !ok && tmpl.Vault != "system" {
		return nil, fmt.Errorf("runtime: vault %q for template %q is not known", tmpl.Vault, templateGlobalID)
	}
	if vs == nil {
		// A system-wide fallback template has no vault of its own; bind it
		// to an arbitrary known vault so its sections can still route
		// file:/variable: outputs somewhere sane. Pick the lexically first
		// one for determinism.
		vs = rc.anyVault()
		if vs == nil {
			return nil, fmt.Errorf("runtime: no vault available to run system template %q", templateGlobalID)
		}
	}
	eng := rc.buildStepEngine(vs, time.Monday)
	mgr := cmgr.NewManager(eng, rc.cache, rc.history, rc.clock)
	return mgr.BuildContext(ctx, tmpl, sessionID, history, latestUserMessage)
}

func (rc *Context) anyVault() *vaultStack {
	names := make([]string, 0, len(rc.vaults))
	for name := range rc.vaults {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	return rc.vaults[names[0]]
}

// buildStepEngine assembles a Step Engine from a vault's persistent
// stack plus a run-specific Pattern Resolver/Input Resolver/Gateway
// (see vaultStack's doc comment for why these are rebuilt per call).
func (rc *Context) buildStepEngine(vs *vaultStack, weekStart time.Weekday) *step.Engine {
	patterns := pattern.New(vs.vault, rc.clock, weekStart, vs.pending)
	inputs := input.New(patterns, vs.vault, vs.buffers, vs.router)

	rc.mu.RLock()
	clients := rc.providers.Clients()
	defaultAlias := ""
	if rc.settings != nil {
		defaultAlias = rc.settings.Settings.DefaultModelAlias
	}
	rc.mu.RUnlock()

	gateway := llm.New(clients, defaultAlias)
	return step.New(patterns, inputs, gateway, vs.router, vs.pending, rc.clock, rc.cfg.Tools, defaultAlias)
}

// discoverVaults scans data_root for vault directories (spec §6: a vault
// is any directory holding an AssistantMD/ subtree; spec §6 "a vault
// directory may contain .vaultignore to exclude it from discovery").
// If data_root itself has an AssistantMD/ subtree, it is treated as the
// sole vault named "default"; otherwise every immediate subdirectory
// without a .vaultignore marker and with its own AssistantMD/ subtree is
// one vault, named after the directory.
func discoverVaults(dataRoot string) ([]*vaultStack, error) {
	if hasAssistantMD(dataRoot) {
		vs, err := newVaultStack("default", dataRoot)
		if err != nil {
			return nil, err
		}
		return []*vaultStack{vs}, nil
	}

	entries, err := os.ReadDir(dataRoot)
	if err != nil {
		return nil, err
	}
	var out []*vaultStack
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dataRoot, e.Name())
		if _, err := os.Stat(filepath.Join(path, ".vaultignore")); err == nil {
			continue
		}
		if !hasAssistantMD(path) {
			continue
		}
		vs, err := newVaultStack(e.Name(), path)
		if err != nil {
			return nil, err
		}
		out = append(out, vs)
	}
	return out, nil
}

func hasAssistantMD(root string) bool {
	info, err := os.Stat(filepath.Join(root, "AssistantMD"))
	return err == nil && info.IsDir()
}

func newVaultStack(name, root string) (*vaultStack, error) {
	vault, err := core.NewVault(root)
	if err != nil {
		return nil, err
	}
	clock := core.NewSystemClock(time.UTC)
	buffers := buffer.New(clock)
	pending := input.NewPendingStore(vault, clock)
	buffersRouter := router.New(vault, buffers)
	return &vaultStack{name: name, vault: vault, buffers: buffers, pending: pending, router: buffersRouter}, nil
}

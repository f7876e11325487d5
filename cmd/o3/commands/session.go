package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/catalog"
	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/dispatch"
	"github.com/o3go/o3go/pkg/engine"
	"github.com/o3go/o3go/pkg/engineclient"
	"github.com/o3go/o3go/pkg/policy"
	"github.com/o3go/o3go/pkg/stores"
	"github.com/o3go/o3go/pkg/telemetry"
	"github.com/o3go/o3go/pkg/transports/ssh"
)

// environment is the configuration and telemetry shared by the commands
// that open sessions.
type environment struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
}

// loadEnvironment loads the configuration, lets the command override it,
// and starts telemetry. The metrics endpoint runs until ctx is done.
func loadEnvironment(cmd *cobra.Command, override func(cfg *config.Config)) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	tel, err := telemetry.NewTelemetry(telemetryConfig(cfg, cmd.Root().Version))
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	env := &environment{cfg: cfg, tel: tel, logger: tel.Logger.Zerolog()}

	if err := tel.Metrics.Serve(cmd.Context(), env.logger); err != nil {
		_ = env.shutdown()
		return nil, err
	}
	return env, nil
}

// telemetryConfig maps the o3 configuration onto the telemetry package.
func telemetryConfig(cfg *config.Config, version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = cfg.Telemetry.LogLevel
	tc.Logging.Format = cfg.Telemetry.LogFormat
	tc.Metrics.Enabled = cfg.Telemetry.Metrics.Enabled
	if cfg.Telemetry.Metrics.Listen != "" {
		tc.Metrics.ListenAddress = cfg.Telemetry.Metrics.Listen
	}
	tc.Tracing.Exporter = cfg.Telemetry.Tracing.Exporter
	tc.Tracing.Endpoint = cfg.Telemetry.Tracing.Endpoint
	tc.Tracing.Insecure = cfg.Telemetry.Tracing.Insecure
	tc.Tracing.SamplingRate = cfg.Telemetry.Tracing.SamplingRate
	return tc
}

func (e *environment) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.tel.Shutdown(ctx)
}

func (e *environment) modelConfig() command.ModelConfig {
	return command.ModelConfig{
		Dimensions: e.cfg.Model.Dimensions,
		DOFPerNode: e.cfg.Model.DOFPerNode,
		Precision:  command.Precision(e.cfg.Model.Precision),
	}
}

// sessionRun is an open session together with everything its backend
// chain holds open.
type sessionRun struct {
	session   *command.Session
	store     stores.Store
	reference *engine.Engine

	metrics *telemetry.Metrics
	closers []func(ctx context.Context) error
}

// openSession builds the backend chain the configuration describes and
// opens a session on it:
//
//	tracing -> policy guard -> tee(primary, recorder(sinks))
//
// The primary is the reference engine, an engine host or, for the record
// kind, the recorder itself. Sinks are the transcript file, the session
// store and Redis. A non-nil ref is used as the reference engine instead of
// a new one.
func (e *environment) openSession(ctx context.Context, source string, ref *engine.Engine) (_ *sessionRun, err error) {
	cfg := e.cfg
	id := uuid.New().String()
	run := &sessionRun{metrics: e.tel.Metrics}
	defer func() {
		if err != nil {
			_ = run.close(context.Background())
		}
	}()

	sinks, err := e.sinks(ctx, run, id, source)
	if err != nil {
		return nil, err
	}

	var backend command.Backend
	switch cfg.Backend.Kind {
	case config.BackendRecord:
		backend = dispatch.NewRecorder(sinks)
	case config.BackendEngine:
		client, err := e.startEngine(ctx, run)
		if err != nil {
			return nil, err
		}
		backend = dispatch.NewLive(client, dispatch.WithLiveLogger(e.logger))
	default:
		run.reference = ref
		if ref == nil {
			run.reference = engine.New(e.referenceOptions()...)
		}
		backend = dispatch.NewLive(run.reference, dispatch.WithLiveLogger(e.logger))
	}
	if cfg.Backend.Kind != config.BackendRecord && len(sinks) > 0 {
		backend = dispatch.NewTee(backend, dispatch.NewRecorder(sinks))
	}

	if cfg.Policy.Enabled {
		guard, err := e.policyGuard(ctx, run, backend)
		if err != nil {
			return nil, err
		}
		backend = guard
	}

	opts := append(e.tel.SessionOptions(), command.WithID(id))
	s, err := command.Open(ctx, e.modelConfig(), e.tel.Backend(backend), opts...)
	if err != nil {
		return nil, err
	}
	run.session = s
	e.tel.Metrics.RecordSessionStarted(cfg.Backend.Kind)
	e.logger.Info().
		Str("session", id).
		Str("backend", command.BackendName(s.Backend())).
		Str("source", source).
		Msg("session opened")
	return run, nil
}

// referenceOptions configures the in-process reference engine.
func (e *environment) referenceOptions() []engine.Option {
	return []engine.Option{
		engine.WithSchemas(catalog.Default()),
		engine.WithStrict(e.cfg.Backend.Strict),
		engine.WithOutput(e.engineOutput),
		engine.WithLogger(e.logger),
	}
}

func (e *environment) engineOutput(level, msg string) {
	ev := e.logger.Info()
	if level != "" && level != "info" {
		ev = e.logger.Warn()
	}
	ev.Str("component", "engine").Msg(msg)
}

// sinks opens the transcript destinations the configuration enables.
func (e *environment) sinks(ctx context.Context, run *sessionRun, id, source string) (dispatch.MultiSink, error) {
	cfg := e.cfg
	var sinks dispatch.MultiSink

	if cfg.Backend.Transcript != "" {
		f, err := os.Create(cfg.Backend.Transcript)
		if err != nil {
			return nil, fmt.Errorf("failed to create transcript: %w", err)
		}
		run.closers = append(run.closers, func(context.Context) error { return f.Close() })
		w := dispatch.NewWriterSink(f)
		if err := w.Writer().Header(id, e.modelConfig()); err != nil {
			return nil, fmt.Errorf("failed to write transcript header: %w", err)
		}
		sinks = append(sinks, w)
	}

	if cfg.Backend.Store {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		run.closers = append(run.closers, func(context.Context) error { return store.Close() })
		sink, err := stores.StartSession(ctx, store, &stores.Session{
			ID:         id,
			Backend:    cfg.Backend.Kind,
			Dimensions: cfg.Model.Dimensions,
			DOFPerNode: cfg.Model.DOFPerNode,
			Source:     source,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record session: %w", err)
		}
		run.store = store
		sinks = append(sinks, sink)
	}

	if cfg.Backend.Redis {
		client := stores.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		run.closers = append(run.closers, func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		sinks = append(sinks, stores.NewRedisSink(client, id, stores.WithRedisPrefix(cfg.Redis.KeyPrefix)))
	}
	return sinks, nil
}

// openStore opens and migrates the session store.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// startEngine connects the configured transport and starts the engine host.
func (e *environment) startEngine(ctx context.Context, run *sessionRun) (*engineclient.Client, error) {
	cfg := e.cfg
	logger := e.tel.Logger.NewComponentLogger("engineclient").Zerolog()

	var transport engineclient.Transport
	switch cfg.Engine.Transport {
	case config.TransportSSH:
		client, err := ssh.NewClient(sshConfig(cfg.SSH), logger)
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		run.closers = append(run.closers, func(context.Context) error { return client.Disconnect() })
		transport = engineclient.NewSSHTransport(client, logger)
	case config.TransportWASM:
		transport = engineclient.NewWASMTransport(logger)
	default:
		transport = engineclient.NewProcessTransport(logger)
	}

	remotePath := ""
	if cfg.Engine.Upload {
		remotePath = cfg.Engine.RemotePath
	}
	client, err := engineclient.NewClient(engineclient.Config{
		Transport:      transport,
		EnginePath:     cfg.Engine.Binary,
		RemotePath:     remotePath,
		Args:           cfg.Engine.Args,
		StartupTimeout: cfg.Engine.StartTimeout,
		CommandTimeout: cfg.Engine.CommandTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	run.closers = append(run.closers, client.Close)
	return client, nil
}

func sshConfig(c config.SSHConfig) *ssh.Config {
	sc := ssh.DefaultConfig(c.Host, c.User)
	sc.Port = c.Port
	sc.StrictHostKeyChecking = c.StrictHostKey
	sc.ConnectionTimeout = c.Timeout
	sc.ProxyHost = c.ProxyHost
	sc.ProxyUser = c.ProxyUser
	if c.KnownHostsPath != "" {
		sc.KnownHostsPath = c.KnownHostsPath
	}
	if c.Password != "" && c.PrivateKeyPath == "" {
		sc.AuthMethod = ssh.AuthMethodPassword
		sc.Password = c.Password
	} else {
		sc.PrivateKeyPath = c.PrivateKeyPath
		sc.PrivateKeyPassphrase = c.Password
	}
	return sc
}

// policyGuard loads the policies and wraps next in a guard. With watching
// on, policy files are reloaded while the session runs.
func (e *environment) policyGuard(ctx context.Context, run *sessionRun, next command.Backend) (*policy.Guard, error) {
	cfg := e.cfg.Policy
	logger := e.tel.Logger.NewComponentLogger("policy").Zerolog()

	pe, err := policy.NewEngine(logger, policy.WithBuiltins(cfg.Builtins))
	if err != nil {
		return nil, err
	}
	if len(cfg.Paths) > 0 {
		if cfg.Watch {
			loader, err := pe.Watch(ctx, cfg.Paths)
			if err != nil {
				return nil, err
			}
			run.closers = append(run.closers, func(context.Context) error { return loader.StopWatching() })
		} else if err := pe.LoadPolicies(ctx, cfg.Paths); err != nil {
			return nil, err
		}
	}
	return policy.NewGuard(pe, catalog.Default(), next, logger), nil
}

// finish records the outcome in the store and releases the backend chain.
func (r *sessionRun) finish(ctx context.Context, runErr error) error {
	var errs []error
	if r.store != nil && r.session != nil {
		status := stores.SessionStatusClosed
		var msg *string
		if runErr != nil {
			status = stores.SessionStatusFailed
			m := runErr.Error()
			msg = &m
		}
		// the run context may already be cancelled
		if err := r.store.UpdateSessionStatus(context.WithoutCancel(ctx), r.session.ID(), status, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if r.session != nil {
		r.metrics.RecordSessionClosed()
	}
	errs = append(errs, r.close(context.WithoutCancel(ctx)))
	return errors.Join(errs...)
}

func (r *sessionRun) close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	r.closers = nil
	return errors.Join(errs...)
}

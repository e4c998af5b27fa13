package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fl0rencess720/inkwell/pkg/common/conf"
	"github.com/Fl0rencess720/inkwell/pkg/common/logging"
	"github.com/Fl0rencess720/inkwell/pkg/common/observability"
	"github.com/Fl0rencess720/inkwell/pkg/common/runner"
	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/Fl0rencess720/inkwell/pkg/studio"
	"github.com/Fl0rencess720/inkwell/pkg/studio/config"
	"github.com/Fl0rencess720/inkwell/pkg/studio/pkgs/db"
	"github.com/Fl0rencess720/inkwell/pkg/studio/pkgs/metrics"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	logging.Init()
}

func main() {
	port := flag.String("port", "", "Inkwell server port, overrides server.port")
	flag.Parse()

	if err := conf.Init(); err != nil {
		zap.L().Fatal("Load config failed", zap.Error(err))
		return
	}

	// 绑定环境变量
	_ = viper.BindEnv("server.port", "INKWELL_PORT")
	_ = viper.BindEnv("content.root", "INKWELL_CONTENT_ROOT")
	_ = viper.BindEnv("content.index_file", "INKWELL_CONTENT_INDEX_FILE")
	_ = viper.BindEnv("content.max_tree_depth", "INKWELL_CONTENT_MAX_TREE_DEPTH")
	_ = viper.BindEnv("content.max_upload_bytes", "INKWELL_CONTENT_MAX_UPLOAD_BYTES")
	_ = viper.BindEnv("content.max_file_bytes", "INKWELL_CONTENT_MAX_FILE_BYTES")
	_ = viper.BindEnv("content.locale", "INKWELL_CONTENT_LOCALE")
	_ = viper.BindEnv("lock.strategy", "INKWELL_LOCK_STRATEGY")
	_ = viper.BindEnv("lock.ttl", "INKWELL_LOCK_TTL")
	_ = viper.BindEnv("redis.addr", "INKWELL_REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "INKWELL_REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "INKWELL_REDIS_DB")
	_ = viper.BindEnv("scaffold.command", "INKWELL_SCAFFOLD_COMMAND")
	_ = viper.BindEnv("scaffold.dir", "INKWELL_SCAFFOLD_DIR")
	_ = viper.BindEnv("deploy.repo_dir", "INKWELL_DEPLOY_REPO_DIR")
	_ = viper.BindEnv("deploy.remote", "INKWELL_DEPLOY_REMOTE")
	_ = viper.BindEnv("deploy.branch", "INKWELL_DEPLOY_BRANCH")
	_ = viper.BindEnv("exec.timeout", "INKWELL_EXEC_TIMEOUT")
	_ = viper.BindEnv("mcp.enabled", "INKWELL_MCP_ENABLED")
	_ = viper.BindEnv("otel.enabled", "INKWELL_OTEL_ENABLED")
	_ = viper.BindEnv("otel.endpoint", "INKWELL_OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = viper.BindEnv("otel.insecure", "INKWELL_OTEL_EXPORTER_OTLP_INSECURE")
	_ = viper.BindEnv("otel.sample_ratio", "INKWELL_OTEL_TRACES_SAMPLE_RATIO")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("content.root", "./site/content/posts")
	viper.SetDefault("content.index_file", content.DefaultIndexFile)
	viper.SetDefault("content.max_tree_depth", content.DefaultMaxTreeDepth)
	viper.SetDefault("content.max_upload_bytes", content.DefaultMaxUploadBytes)
	viper.SetDefault("content.max_file_bytes", content.DefaultMaxFileBytes)
	viper.SetDefault("content.locale", "und")
	viper.SetDefault("lock.strategy", config.LockStrategyLocal)
	viper.SetDefault("lock.ttl", "30s")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("scaffold.command", []string{"sh", "scripts/new-post.sh"})
	viper.SetDefault("scaffold.dir", "./site")
	viper.SetDefault("deploy.repo_dir", "./site")
	viper.SetDefault("exec.timeout", "2m")
	viper.SetDefault("mcp.enabled", true)
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "otel-collector:4317")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.sample_ratio", 0.1)

	cfg := &config.Config{
		Port:            viper.GetString("server.port"),
		PostsRoot:       viper.GetString("content.root"),
		IndexFile:       viper.GetString("content.index_file"),
		MaxTreeDepth:    viper.GetInt("content.max_tree_depth"),
		MaxUploadBytes:  viper.GetInt64("content.max_upload_bytes"),
		MaxFileBytes:    viper.GetInt64("content.max_file_bytes"),
		Locale:          viper.GetString("content.locale"),
		LockStrategy:    viper.GetString("lock.strategy"),
		LockTTL:         viper.GetDuration("lock.ttl"),
		RedisAddr:       viper.GetString("redis.addr"),
		RedisDB:         viper.GetInt("redis.db"),
		RedisPass:       viper.GetString("redis.password"),
		ScaffoldCommand: viper.GetStringSlice("scaffold.command"),
		ScaffoldDir:     viper.GetString("scaffold.dir"),
		DeployRepoDir:   viper.GetString("deploy.repo_dir"),
		DeployRemote:    viper.GetString("deploy.remote"),
		DeployBranch:    viper.GetString("deploy.branch"),
		CommandTimeout:  viper.GetDuration("exec.timeout"),
		MCPEnabled:      viper.GetBool("mcp.enabled"),
	}
	if *port != "" {
		cfg.Port = *port
	}
	if err := config.Validate(cfg); err != nil {
		zap.L().Fatal("Invalid config", zap.Error(err))
		return
	}

	otelShutdown, err := observability.SetupTracing(context.Background(), observability.TracingConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		Service:     "inkwell",
		Version:     version,
		Endpoint:    viper.GetString("otel.endpoint"),
		Insecure:    viper.GetBool("otel.insecure"),
		Headers:     viper.GetStringMapString("otel.headers"),
		SampleRatio: viper.GetFloat64("otel.sample_ratio"),
	})
	if err != nil {
		zap.L().Fatal("Initialize tracing failed", zap.Error(err))
		return
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := otelShutdown(shutdownCtx); shutdownErr != nil {
			zap.L().Warn("Shutdown tracer provider failed", zap.Error(shutdownErr))
		}
	}()

	ws, err := newWorkspace(cfg)
	if err != nil {
		zap.L().Fatal("Open workspace failed", zap.Error(err))
		return
	}

	server, err := studio.NewServer(cfg, ws)
	if err != nil {
		zap.L().Fatal("New Server failed", zap.Error(err))
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer logging.Sync(zap.L())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("Received shutdown signal, shutting down gracefully...")
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Server shutdown error", zap.Error(err))
		}
		zap.L().Info("Server shutdown complete.")
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			zap.L().Info("Server shutdown complete.")
			return
		}
		zap.L().Fatal("Server error", zap.Error(err))
	}
}

func newWorkspace(cfg *config.Config) (*content.Workspace, error) {
	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, err
	}

	cmdRunner := &runner.Runner{Timeout: cfg.CommandTimeout}

	return content.NewWorkspace(content.Options{
		PostsRoot:      cfg.PostsRoot,
		IndexFile:      cfg.IndexFile,
		MaxTreeDepth:   cfg.MaxTreeDepth,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxFileBytes:   cfg.MaxFileBytes,
		Locale:         locale,
		Locker:         newLocker(cfg),
		Scaffolder: &runner.ScriptScaffolder{
			Runner:  cmdRunner,
			Command: cfg.ScaffoldCommand,
			Dir:     cfg.ScaffoldDir,
		},
		Deployer: &runner.GitDeployer{
			Runner:  cmdRunner,
			RepoDir: cfg.DeployRepoDir,
			Remote:  cfg.DeployRemote,
			Branch:  cfg.DeployBranch,
		},
		Observer: metrics.Observer{},
	})
}

func newLocker(cfg *config.Config) content.Locker {
	switch cfg.LockStrategy {
	case config.LockStrategyNone:
		zap.L().Warn("Post locking disabled, concurrent edits may interleave")
		return content.NopLocker{}
	case config.LockStrategyRedis:
		zap.L().Info("Using redis post lock", zap.String("addr", cfg.RedisAddr))
		return db.NewRedisLocker(db.NewRedis(), cfg.LockTTL)
	default:
		return content.NewKeyedLocker()
	}
}

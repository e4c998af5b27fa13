package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	LockStrategyNone  = "none"
	LockStrategyLocal = "local"
	LockStrategyRedis = "redis"
)

type Config struct {
	Port string `json:"port" validate:"required,numeric"`

	PostsRoot      string `json:"posts_root" validate:"required"`
	IndexFile      string `json:"index_file" validate:"required,excludesall=/\\"`
	MaxTreeDepth   int    `json:"max_tree_depth" validate:"min=1,max=1024"`
	MaxUploadBytes int64  `json:"max_upload_bytes" validate:"min=1"`
	MaxFileBytes   int64  `json:"max_file_bytes" validate:"min=1"`
	Locale         string `json:"locale" validate:"required,bcp47_language_tag"`

	LockStrategy string        `json:"lock_strategy" validate:"oneof=none local redis"`
	LockTTL      time.Duration `json:"lock_ttl" validate:"required_if=LockStrategy redis"`
	RedisAddr    string        `json:"redis_addr" validate:"required_if=LockStrategy redis"`
	RedisDB      int           `json:"redis_db" validate:"min=0"`
	RedisPass    string        `json:"-"`

	ScaffoldCommand []string      `json:"scaffold_command"`
	ScaffoldDir     string        `json:"scaffold_dir"`
	DeployRepoDir   string        `json:"deploy_repo_dir"`
	DeployRemote    string        `json:"deploy_remote"`
	DeployBranch    string        `json:"deploy_branch"`
	CommandTimeout  time.Duration `json:"command_timeout" validate:"min=0"`

	MCPEnabled bool `json:"mcp_enabled"`
}

// Validate checks struct tags, then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.DeployBranch != "" && cfg.DeployRemote == "" {
		return fmt.Errorf("deploy_branch requires deploy_remote")
	}
	return nil
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// Package actions provides built-in implementations of the external action
// executor capability.
package actions

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/executor"
	"github.com/jonesrussell/gopace/internal/logger"
)

// Ensure DryRun satisfies the capability interface.
var _ executor.ActionExecutor = (*DryRun)(nil)

// DryRun is an action executor that performs no platform calls. Every
// action is logged and reported as successful, which makes it useful for
// validating loop configurations and pacing behavior before wiring in a
// real platform client.
type DryRun struct {
	logger logger.Logger
}

// NewDryRun creates a DryRun executor.
func NewDryRun(log logger.Logger) *DryRun {
	if log == nil {
		log = logger.NewNop()
	}
	return &DryRun{logger: log}
}

func (d *DryRun) result(action string, fields ...logger.Field) domain.ActionResult {
	d.logger.Info("dry-run action", append([]logger.Field{logger.String("action", action)}, fields...)...)
	return domain.ActionResult{ID: uuid.NewString(), Data: map[string]any{"dry_run": true}}
}

func (d *DryRun) CreatePost(_ context.Context, content string, media []string) (domain.ActionResult, error) {
	return d.result("create_post",
		logger.Int("content_length", len(content)),
		logger.Int("media", len(media))), nil
}

func (d *DryRun) Reply(_ context.Context, target, content string, _ []string) (domain.ActionResult, error) {
	return d.result("reply",
		logger.String("target", target),
		logger.Int("content_length", len(content))), nil
}

func (d *DryRun) Follow(_ context.Context, target string) (domain.ActionResult, error) {
	return d.result("follow", logger.String("target", target)), nil
}

func (d *DryRun) BulkFollow(_ context.Context, targets []string) (domain.ActionResult, error) {
	return d.result("bulk_follow", logger.Int("targets", len(targets))), nil
}

func (d *DryRun) Unfollow(_ context.Context, target string) (domain.ActionResult, error) {
	return d.result("unfollow", logger.String("target", target)), nil
}

func (d *DryRun) Like(_ context.Context, target string) (domain.ActionResult, error) {
	return d.result("like", logger.String("target", target)), nil
}

func (d *DryRun) Retweet(_ context.Context, target string) (domain.ActionResult, error) {
	return d.result("retweet", logger.String("target", target)), nil
}

func (d *DryRun) SendDM(_ context.Context, target, content string) (domain.ActionResult, error) {
	return d.result("dm",
		logger.String("target", target),
		logger.Int("content_length", len(content))), nil
}

func (d *DryRun) CreateList(_ context.Context, name, _ string, members []string) (domain.ActionResult, error) {
	return d.result("create_list",
		logger.String("name", name),
		logger.Int("members", len(members))), nil
}

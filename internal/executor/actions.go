package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/gopace/internal/domain"
	"github.com/jonesrussell/gopace/internal/logger"
)

// Typed action parameters, decoded from the loosely-typed loop config.
type postParams struct {
	Content string   `mapstructure:"content"`
	Media   []string `mapstructure:"media"`
}

type replyParams struct {
	Target  string   `mapstructure:"target"`
	Content string   `mapstructure:"content"`
	Media   []string `mapstructure:"media"`
}

type targetParams struct {
	Target  string   `mapstructure:"target"`
	Targets []string `mapstructure:"targets"`
}

type dmParams struct {
	Target  string `mapstructure:"target"`
	Content string `mapstructure:"content"`
}

// decodeParams decodes loop action params into a typed struct. Decoding
// failures are fatal: the configuration will not fix itself on retry.
func decodeParams(params map[string]any, out any) error {
	if err := mapstructure.Decode(params, out); err != nil {
		return Fatal(fmt.Errorf("decode action params: %w", err))
	}
	return nil
}

// executeAction runs one action through the full pacing pipeline: monitor
// start, limiter admission, cache short-circuit, external execution, then
// recording into limiter, monitor, and cache. Action failures are absorbed;
// only context cancellation is returned.
func (e *Executor) executeAction(ctx context.Context, action *domain.LoopAction) error {
	token := e.monitor.StartOperation(action.Type.String())

	wait := e.limiter.WaitTime(action.Type)
	if e.metrics != nil {
		e.metrics.ObserveRateWait(action.Type.String(), wait)
	}
	if err := e.limiter.WaitIfNeeded(ctx, action.Type); err != nil {
		e.monitor.EndOperation(token, false, "cancelled while waiting for admission")
		return err
	}
	if e.stopping(ctx) {
		e.monitor.EndOperation(token, false, "stopped before execution")
		return context.Canceled
	}

	if result, ok := e.cachedResult(action); ok {
		if e.metrics != nil {
			e.metrics.CacheHits.Inc()
		}
		e.monitor.EndOperation(token, true, "")
		e.logger.Debug("action short-circuited from cache",
			logger.String("type", action.Type.String()),
			logger.Any("result", result.AsMap()))
		return nil
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.Inc()
	}

	started := e.clock()
	_, err := e.dispatch(ctx, action)
	e.recordOutcome(action, err, e.clock().Sub(started))

	if err != nil {
		e.monitor.EndOperation(token, false, err.Error())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}

	e.monitor.EndOperation(token, true, "")
	return nil
}

// recordOutcome feeds an action's result back into the limiter, cache, and
// global self-throttle.
func (e *Executor) recordOutcome(action *domain.LoopAction, err error, duration time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveAction(action.Type.String(), err == nil, duration)
	}

	if err == nil {
		e.limiter.Record(action.Type, true)
		e.cacheResult(action)
		e.decayThrottle()
		return
	}

	e.logger.Warn("action failed",
		logger.String("type", action.Type.String()),
		logger.Error(err))

	if IsFatal(err) {
		// Backing off cannot fix a fatal failure.
		e.limiter.RecordNeutral(action.Type)
		return
	}

	e.limiter.Record(action.Type, false)
	e.growThrottle()
}

// growThrottle raises the global rate multiplier after a retryable failure.
func (e *Executor) growThrottle() {
	m := e.limiter.GlobalMultiplier() * throttleGrowthFactor
	e.limiter.AdjustGlobalRate(m)
	if e.metrics != nil {
		e.metrics.RateMultiplier.Set(e.limiter.GlobalMultiplier())
	}
}

// decayThrottle relaxes the multiplier back toward neutral on success.
func (e *Executor) decayThrottle() {
	m := e.limiter.GlobalMultiplier()
	if m <= 1.0 {
		return
	}
	m *= throttleDecayFactor
	if m < 1.0 {
		m = 1.0
	}
	e.limiter.AdjustGlobalRate(m)
	if e.metrics != nil {
		e.metrics.RateMultiplier.Set(e.limiter.GlobalMultiplier())
	}
}

// dispatch decodes the action's params and invokes the matching external
// capability.
func (e *Executor) dispatch(ctx context.Context, action *domain.LoopAction) (domain.ActionResult, error) {
	switch action.Type {
	case domain.ActionTweet:
		var p postParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Content == "" {
			return domain.ActionResult{}, Fatal(errors.New("post action requires content"))
		}
		return e.actions.CreatePost(ctx, p.Content, p.Media)

	case domain.ActionReply:
		var p replyParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Target == "" || p.Content == "" {
			return domain.ActionResult{}, Fatal(errors.New("reply action requires target and content"))
		}
		return e.actions.Reply(ctx, p.Target, p.Content, p.Media)

	case domain.ActionFollow:
		var p targetParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if len(p.Targets) > 0 {
			return e.actions.BulkFollow(ctx, p.Targets)
		}
		if p.Target == "" {
			return domain.ActionResult{}, Fatal(errors.New("follow action requires target"))
		}
		return e.actions.Follow(ctx, p.Target)

	case domain.ActionUnfollow:
		var p targetParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Target == "" {
			return domain.ActionResult{}, Fatal(errors.New("unfollow action requires target"))
		}
		return e.actions.Unfollow(ctx, p.Target)

	case domain.ActionLike:
		var p targetParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Target == "" {
			return domain.ActionResult{}, Fatal(errors.New("like action requires target"))
		}
		return e.actions.Like(ctx, p.Target)

	case domain.ActionRetweet:
		var p targetParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Target == "" {
			return domain.ActionResult{}, Fatal(errors.New("retweet action requires target"))
		}
		return e.actions.Retweet(ctx, p.Target)

	case domain.ActionDM:
		var p dmParams
		if err := decodeParams(action.Params, &p); err != nil {
			return domain.ActionResult{}, err
		}
		if p.Target == "" || p.Content == "" {
			return domain.ActionResult{}, Fatal(errors.New("dm action requires target and content"))
		}
		return e.actions.SendDM(ctx, p.Target, p.Content)

	default:
		return domain.ActionResult{}, Fatal(fmt.Errorf("unknown action type: %q", action.Type))
	}
}

// cachedResult checks whether a prior result makes this action redundant:
// an identical post was already published, a follow target is already
// followed, or an unfollow target is already unfollowed.
func (e *Executor) cachedResult(action *domain.LoopAction) (domain.ActionResult, bool) {
	switch action.Type {
	case domain.ActionTweet:
		var p postParams
		if decodeParams(action.Params, &p) != nil || p.Content == "" {
			return domain.ActionResult{}, false
		}
		if _, ok := e.cache.TweetContent(contentHash(p.Content)); ok {
			return domain.ActionResult{Cached: true}, true
		}

	case domain.ActionFollow:
		var p targetParams
		if decodeParams(action.Params, &p) != nil || p.Target == "" {
			return domain.ActionResult{}, false
		}
		if following, ok := e.cache.FollowStatus(p.Target); ok && following {
			return domain.ActionResult{Cached: true}, true
		}

	case domain.ActionUnfollow:
		var p targetParams
		if decodeParams(action.Params, &p) != nil || p.Target == "" {
			return domain.ActionResult{}, false
		}
		if following, ok := e.cache.FollowStatus(p.Target); ok && !following {
			return domain.ActionResult{Cached: true}, true
		}
	}
	return domain.ActionResult{}, false
}

// cacheResult writes a successful action's outcome into the cache so later
// passes can short-circuit.
func (e *Executor) cacheResult(action *domain.LoopAction) {
	switch action.Type {
	case domain.ActionTweet:
		var p postParams
		if decodeParams(action.Params, &p) == nil && p.Content != "" {
			e.cache.SetTweetContent(contentHash(p.Content), p.Content)
		}

	case domain.ActionFollow:
		var p targetParams
		if decodeParams(action.Params, &p) == nil {
			if p.Target != "" {
				e.cache.SetFollowStatus(p.Target, true)
			}
			for _, target := range p.Targets {
				e.cache.SetFollowStatus(target, true)
			}
		}

	case domain.ActionUnfollow:
		var p targetParams
		if decodeParams(action.Params, &p) == nil && p.Target != "" {
			e.cache.SetFollowStatus(p.Target, false)
		}
	}
}

// contentHash digests post content into a fixed-length cache key.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Package domain provides domain models used across the application.
package domain

import (
	"fmt"
)

// ActionType identifies a category of social-media action. It drives all
// per-type rate limiting and cache configuration.
type ActionType string

const (
	ActionTweet    ActionType = "tweets"
	ActionFollow   ActionType = "follows"
	ActionUnfollow ActionType = "unfollows"
	ActionLike     ActionType = "likes"
	ActionReply    ActionType = "replies"
	ActionRetweet  ActionType = "retweets"
	ActionDM       ActionType = "dm"
)

// AllActionTypes returns every known action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTweet,
		ActionFollow,
		ActionUnfollow,
		ActionLike,
		ActionReply,
		ActionRetweet,
		ActionDM,
	}
}

// ParseActionType converts a string into an ActionType.
// Returns an error for unknown values.
func ParseActionType(value string) (ActionType, error) {
	t := ActionType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown action type: %q", value)
	}
	return t, nil
}

// IsValid returns true if the action type is a known value.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTweet, ActionFollow, ActionUnfollow, ActionLike,
		ActionReply, ActionRetweet, ActionDM:
		return true
	default:
		return false
	}
}

// String returns the string representation of the action type.
func (t ActionType) String() string {
	return string(t)
}

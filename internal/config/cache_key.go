package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserProgressKey returns the cache key for a user's saved test progress
func (r *CacheKeyStruct) UserProgressKey(userID string) string {
	return fmt.Sprintf("user:%s:progress", userID)
}

// TimeoutSubmitKey returns the one-shot guard key for a session's timeout submission
func (r *CacheKeyStruct) TimeoutSubmitKey(sessionID string) string {
	return fmt.Sprintf("session:%s:timeout_submit", sessionID)
}

var CacheKey = NewCacheKeyStruct()

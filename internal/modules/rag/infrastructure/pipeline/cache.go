package pipeline

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// resultCache 召回结果的 TTL 缓存，key 为 (query, topK, filterDocID, excludeDocID)。
// 文档重建后必须 Purge，否则会吐出旧图的结果。
type resultCache struct {
	lru *expirable.LRU[string, *RetrieveResult]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &resultCache{lru: expirable.NewLRU[string, *RetrieveResult](size, nil, ttl)}
}

func cacheKey(req *RetrieveRequest) string {
	return fmt.Sprintf("%s|%d|%s|%s", req.Query, req.TopK, req.FilterDocID, req.ExcludeDocID)
}

func (c *resultCache) Get(req *RetrieveRequest) (*RetrieveResult, bool) {
	return c.lru.Get(cacheKey(req))
}

func (c *resultCache) Add(req *RetrieveRequest, res *RetrieveResult) {
	c.lru.Add(cacheKey(req), res)
}

func (c *resultCache) Purge() {
	c.lru.Purge()
}

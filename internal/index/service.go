package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/events"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/log"
)

// Service owns one Index per remote touched by the run. An index backed
// by a cached table is populated synchronously; otherwise the document is
// streamed on a dedicated goroutine and pipelines resolve against the
// index while it is still filling.
type Service struct {
	api   *figma.Client
	cache *cache.Store
	hub   *events.Hub

	mu      sync.Mutex
	indexes map[string]*Index
}

func NewService(api *figma.Client, store *cache.Store, hub *events.Hub) *Service {
	return &Service{
		api:     api,
		cache:   store,
		hub:     hub,
		indexes: make(map[string]*Index),
	}
}

// CacheKey identifies a remote's index blob: file key plus the container
// subtree selection.
func CacheKey(remote *config.Remote) cache.Key {
	b := cache.NewKey(cache.TagRemoteIndex).WriteString(remote.FileKey)
	for _, c := range remote.Containers {
		b.WriteString(c.NodeID).WriteString(c.Tag)
	}
	return b.Build()
}

// For returns the index for a remote, starting the streaming fetch on
// first use. refetch skips the cached table for this run.
func (s *Service) For(ctx context.Context, remote *config.Remote, refetch bool) *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[remote.ID]; ok {
		return idx
	}

	idx := New()
	s.indexes[remote.ID] = idx

	if !refetch {
		if data, ok := s.cache.Get(CacheKey(remote)); ok {
			if err := populateFromBlob(idx, data); err == nil {
				idx.MarkComplete(nil)
				s.hub.Publish(events.IndexProgress{Remote: remote.ID, Seen: idx.Len(), Done: true})
				return idx
			}
			// A stale or corrupt table falls through to a fresh fetch.
			log.WithRemote(remote.ID).Warn("cached index unreadable, refetching")
		}
	}

	go s.fetch(ctx, remote, idx)
	return idx
}

func (s *Service) fetch(ctx context.Context, remote *config.Remote, idx *Index) {
	logger := log.WithRemote(remote.ID)
	s.hub.Publish(events.RemoteFetchStarted{Remote: remote.ID})

	err := s.stream(ctx, remote, idx)
	if err != nil {
		logger.Error("remote indexing failed", "error", err)
		idx.MarkComplete(err)
		s.hub.Publish(events.RemoteFetchFinished{Remote: remote.ID, Err: err})
		return
	}

	if err := s.commit(remote, idx); err != nil {
		logger.Warn("unable to save remote index to cache", "error", err)
	}
	idx.MarkComplete(nil)
	s.hub.Publish(events.RemoteFetchFinished{Remote: remote.ID, Nodes: idx.Len()})
	s.hub.Publish(events.IndexProgress{Remote: remote.ID, Seen: idx.Len(), Done: true})
}

func (s *Service) stream(ctx context.Context, remote *config.Remote, idx *Index) error {
	token, err := remote.Token.Resolve(remote.ID)
	if err != nil {
		return err
	}

	body, err := s.api.FileNodes(ctx, token, remote.FileKey, remote.ContainerIDs())
	if err != nil {
		return err
	}
	defer body.Close()

	tags := make(map[string]string, len(remote.Containers))
	for _, c := range remote.Containers {
		if c.Tag != "" {
			tags[c.NodeID] = c.Tag
		}
	}

	seen := 0
	return figma.WalkNodes(body, tags, func(n figma.Node) {
		if !n.Visible || !n.IsComponent() {
			return
		}
		idx.Add(n)
		seen++
		if seen%64 == 0 {
			s.hub.Publish(events.IndexProgress{Remote: remote.ID, Seen: seen})
		}
	})
}

// blobEntry is the persisted form of one indexed node.
type blobEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Tag    string `json:"tag,omitempty"`
	Raster bool   `json:"raster,omitempty"`
	Hash   uint64 `json:"hash"`
}

func (s *Service) commit(remote *config.Remote, idx *Index) error {
	nodes := idx.Snapshot()
	entries := make([]blobEntry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, blobEntry{
			ID:     n.ID,
			Name:   n.Name,
			Type:   n.Type,
			Tag:    n.Tag,
			Raster: n.HasRasterFills,
			Hash:   n.Hash,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.cache.Put(CacheKey(remote), data)
}

func populateFromBlob(idx *Index, data []byte) error {
	var entries []blobEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode index blob: %w", err)
	}
	for _, e := range entries {
		idx.Add(figma.Node{
			ID:             e.ID,
			Name:           e.Name,
			Type:           e.Type,
			Tag:            e.Tag,
			HasRasterFills: e.Raster,
			Visible:        true,
			Hash:           e.Hash,
		})
	}
	return nil
}

// Package input implements the Input Resolver (spec §4.E): expanding
// `@input` primitives into prompt text or manifests, and owning the
// Pending State store's mutation lifecycle.
package input

import (
	"context"
	"sync"

	"github.com/DodgyBadger/AssistantMD-sub001/engine/core"
)

// pendingKey identifies one (workflow, pattern) Pending State bucket.
type pendingKey struct {
	workflowGlobalID string
	pattern          string
}

// pendingRecord is the last-known state of one vault-relative path within
// a bucket (spec §3 "Pending State").
type pendingRecord struct {
	digest   string
	markedAt int64
}

// PendingStore tracks, per (workflow_global_id, input_pattern_string),
// which vault-relative paths have already been consumed by a successful
// step. It implements pattern.PendingStore so the Pattern Resolver can
// consult it without importing this package.
type PendingStore struct {
	mu      sync.Mutex
	marked  map[pendingKey]map[string]pendingRecord
	clock   core.Clock
	vault   *core.Vault
	digestF func(path string) (string, error)
}

// NewPendingStore builds an empty, in-memory Pending State store. It is
// process-lifetime only; the spec does not require durability for Pending
// State across restarts beyond what the Runtime Context's reload keeps in
// memory, mirroring how Scheduler jobs (not pending state) are the
// durable record.
func NewPendingStore(vault *core.Vault, clock core.Clock) *PendingStore {
	return &PendingStore{
		marked:  map[pendingKey]map[string]pendingRecord{},
		clock:   clock,
		vault:   vault,
		digestF: core.DigestFile,
	}
}

// Candidates implements pattern.PendingStore: it filters allMatches down
// to paths never marked processed, or marked but whose current on-disk
// digest no longer matches the last-known one (spec §3: "re-queues when
// the file digest changes").
func (s *PendingStore) Candidates(
	_ context.Context,
	workflowGlobalID, patternString string,
	allMatches []string,
) ([]string, error) {
	s.mu.Lock()
	bucket := s.marked[pendingKey{workflowGlobalID, patternString}]
	s.mu.Unlock()

	var out []string
	for _, rel := range allMatches {
		rec, seen := bucket[rel]
		if !seen {
			out = append(out, rel)
			continue
		}
		abs, err := s.vault.Resolve(rel)
		if err != nil {
			return nil, err
		}
		digest, err := s.digestF(abs)
		if err != nil {
			out = append(out, rel)
			continue
		}
		if digest != rec.digest {
			out = append(out, rel)
		}
	}
	return out, nil
}

// MarkProcessed records paths as consumed by (workflowGlobalID, pattern),
// only called by the Step Engine after the containing step completes
// successfully (spec §4.E point 5, §5 "all-or-nothing per step").
func (s *PendingStore) MarkProcessed(workflowGlobalID, patternString string, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pendingKey{workflowGlobalID, patternString}
	bucket := s.marked[key]
	if bucket == nil {
		bucket = map[string]pendingRecord{}
		s.marked[key] = bucket
	}
	now := s.clock.Now().Unix()
	for _, rel := range paths {
		abs, err := s.vault.Resolve(rel)
		if err != nil {
			return err
		}
		digest, err := s.digestF(abs)
		if err != nil {
			return err
		}
		bucket[rel] = pendingRecord{digest: digest, markedAt: now}
	}
	return nil
}

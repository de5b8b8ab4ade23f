// Package registry resolves human-readable location names to poses using the
// navigation backend's POI catalogue.
//
// The lookup table is replaced wholesale on every refresh and published
// through an atomic pointer, so concurrent Resolve calls observe either the
// previous table or the new one, never a mix.
package registry

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"

	"github.com/zeebo/blake3"
)

type Config struct {
	Source   ports.CatalogueSource
	Snapshot ports.SnapshotWriter
	Logger   *slog.Logger
	Now      func() time.Time
}

type Registry struct {
	cfg   Config
	table atomic.Pointer[table]
}

type table struct {
	entries     map[string]visit.Pose
	digest      [32]byte
	total       int
	refreshedAt time.Time
}

type RefreshResult struct {
	Stored  int
	Total   int
	Changed bool
	Digest  string
}

func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{cfg: cfg}
}

// Refresh fetches the full catalogue and swaps it in. A failed fetch leaves
// the previous table untouched.
func (r *Registry) Refresh(ctx context.Context) (RefreshResult, error) {
	records, err := r.cfg.Source.FetchCatalogue(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh catalogue: %w", err)
	}

	entries := make(map[string]visit.Pose, len(records))
	for i, rec := range records {
		if rec.DisplayName == nil {
			continue
		}
		name := visit.NormalizeName(*rec.DisplayName)
		if name == "" {
			r.cfg.Logger.Warn("poi with blank display name skipped", "index", i)
			continue
		}
		if rec.Pose == nil {
			r.cfg.Logger.Warn("poi without pose skipped", "name", name)
			continue
		}
		if _, dup := entries[name]; dup {
			r.cfg.Logger.Warn("duplicate poi name, keeping last", "name", name)
		}
		entries[name] = visit.NewPose(rec.Pose.X, rec.Pose.Y, rec.Pose.Yaw)
	}

	next := &table{
		entries:     entries,
		digest:      digest(entries),
		total:       len(records),
		refreshedAt: r.cfg.Now(),
	}
	prev := r.table.Swap(next)
	changed := prev == nil || prev.digest != next.digest

	if r.cfg.Snapshot != nil {
		if err := r.cfg.Snapshot.WriteSnapshot(ctx, copyEntries(entries)); err != nil {
			r.cfg.Logger.Warn("poi snapshot not written", "error", err)
		}
	}

	res := RefreshResult{
		Stored:  len(entries),
		Total:   len(records),
		Changed: changed,
		Digest:  hex.EncodeToString(next.digest[:8]),
	}
	r.cfg.Logger.Info("poi catalogue refreshed", "stored", res.Stored, "total", res.Total, "changed", res.Changed, "digest", res.Digest)
	return res, nil
}

func (r *Registry) Resolve(name string) (visit.Pose, error) {
	key := visit.NormalizeName(name)
	t := r.table.Load()
	if t == nil {
		return visit.Pose{}, fmt.Errorf("%w: location %q (catalogue not loaded)", ports.ErrNotFound, key)
	}
	pose, ok := t.entries[key]
	if !ok {
		return visit.Pose{}, fmt.Errorf("%w: location %q", ports.ErrNotFound, key)
	}
	return pose, nil
}

// Entries lists the current table sorted by name.
func (r *Registry) Entries() []visit.LocationEntry {
	t := r.table.Load()
	if t == nil {
		return nil
	}
	out := make([]visit.LocationEntry, 0, len(t.entries))
	for name, pose := range t.entries {
		out = append(out, visit.LocationEntry{Name: name, Pose: pose})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunRefreshLoop refreshes on every tick until ctx ends. Failures keep the
// last good table.
func (r *Registry) RunRefreshLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.cfg.Logger.Warn("poi refresh failed, keeping previous catalogue", "error", err)
			}
		}
	}
}

func digest(entries map[string]visit.Pose) [32]byte {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	h := blake3.New()
	buf := make([]byte, 0, 64)
	for _, name := range names {
		p := entries[name]
		buf = buf[:0]
		buf = append(buf, name...)
		buf = append(buf, 0)
		buf = strconv.AppendFloat(buf, p.X, 'f', 3, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p.Y, 'f', 3, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p.Yaw, 'f', 3, 64)
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func copyEntries(in map[string]visit.Pose) map[string]visit.Pose {
	out := make(map[string]visit.Pose, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

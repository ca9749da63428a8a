package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/freeeve/roundscope/internal/model"
	"github.com/freeeve/roundscope/internal/repository"
	"github.com/freeeve/roundscope/pkg/spatial"
)

// replaceAttempts bounds how often Replace retries after a concurrent write
// to the same index.
const replaceAttempts = 5

// Key patterns for tracker snapshots, before the client prefix.
func blobKey(id string) string { return "tracker:" + id + ":blob" }
func heatKey(id string) string { return "tracker:" + id + ":heat" }
func metaKey(id string) string { return "tracker:" + id + ":meta" }
func indexKey(cfg spatial.Config) string {
	return "trackers:" + cfg.MapName + ":" + strconv.FormatFloat(cfg.TileLength, 'g', -1, 64) + ":" + strconv.Itoa(cfg.RoutineLength)
}

func parseIndexKey(key string) (spatial.Config, bool) {
	rest, ok := strings.CutPrefix(key, "trackers:")
	if !ok {
		return spatial.Config{}, false
	}
	// Map names may contain ':'; the two numeric fields are taken from the right.
	i := strings.LastIndexByte(rest, ':')
	if i < 0 {
		return spatial.Config{}, false
	}
	routineLength, err := strconv.Atoi(rest[i+1:])
	if err != nil {
		return spatial.Config{}, false
	}
	rest = rest[:i]
	j := strings.LastIndexByte(rest, ':')
	if j < 0 {
		return spatial.Config{}, false
	}
	tileLength, err := strconv.ParseFloat(rest[j+1:], 64)
	if err != nil {
		return spatial.Config{}, false
	}
	return spatial.Config{MapName: rest[:j], TileLength: tileLength, RoutineLength: routineLength}, true
}

func (c *Client) key(name string) string { return c.prefix + name }

func (c *Client) snapshotKeys(id string) []string {
	return []string{c.key(blobKey(id)), c.key(metaKey(id)), c.key(heatKey(id))}
}

// encoded is a snapshot ready to be written.
type encoded struct {
	snap *model.TrackerSnapshot
	blob []byte
	meta []byte
	heat []byte
}

func encodeSnapshot(t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*encoded, error) {
	cfg := t.Config()
	if heat != nil && (heat.MapName() != cfg.MapName || heat.TileLength() != cfg.TileLength) {
		return nil, fmt.Errorf("%w: heatmap %s/%v for tracker %s",
			spatial.ErrIncompatibleTrackers, heat.MapName(), heat.TileLength(), cfg)
	}
	blob, err := t.MarshalBinary()
	if err != nil {
		return nil, err
	}
	e := &encoded{
		snap: &model.TrackerSnapshot{
			ID:            uuid.NewString(),
			MapName:       cfg.MapName,
			TileLength:    cfg.TileLength,
			RoutineLength: cfg.RoutineLength,
			Recordings:    len(t.Sources()),
			Routines:      t.Len(),
			CreatedAt:     time.Now().UTC(),
		},
		blob: blob,
	}
	if heat != nil {
		if e.heat, err = heat.MarshalBinary(); err != nil {
			return nil, err
		}
		e.snap.Positions = heat.Total()
	}
	if e.meta, err = json.Marshal(e.snap); err != nil {
		return nil, fmt.Errorf("marshal tracker meta: %w", err)
	}
	return e, nil
}

func (c *Client) write(ctx context.Context, pipe redis.Pipeliner, e *encoded) {
	id := e.snap.ID
	pipe.Set(ctx, c.key(blobKey(id)), e.blob, 0)
	pipe.Set(ctx, c.key(metaKey(id)), e.meta, 0)
	if e.heat != nil {
		pipe.Set(ctx, c.key(heatKey(id)), e.heat, 0)
	}
	pipe.SAdd(ctx, c.key(indexKey(e.snap.Config())), id)
}

// Save stores a tracker snapshot with its optional heatmap and indexes it
// under its config.
func (c *Client) Save(ctx context.Context, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error) {
	e, err := encodeSnapshot(t, heat)
	if err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		c.write(ctx, pipe, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save tracker: %w", err)
	}
	return e.snap, nil
}

// Replace stores t and heat as a new snapshot and removes the snapshots ids in
// one transaction. It fails with repository.ErrSnapshotsChanged, writing
// nothing, if any of ids is no longer indexed under t's config. Snapshots
// saved concurrently are left alone.
func (c *Client) Replace(ctx context.Context, ids []string, t *spatial.RoutineTracker, heat *spatial.PositionCounter) (*model.TrackerSnapshot, error) {
	if len(ids) == 0 {
		return nil, errors.New("replace trackers: no snapshots to replace")
	}
	e, err := encodeSnapshot(t, heat)
	if err != nil {
		return nil, fmt.Errorf("replace trackers: %w", err)
	}
	index := c.key(indexKey(t.Config()))
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	txf := func(tx *redis.Tx) error {
		present, err := tx.SMIsMember(ctx, index, members...).Result()
		if err != nil {
			return err
		}
		for i, ok := range present {
			if !ok {
				return fmt.Errorf("%w: %s is no longer stored", repository.ErrSnapshotsChanged, ids[i])
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			c.write(ctx, pipe, e)
			for _, id := range ids {
				pipe.Del(ctx, c.snapshotKeys(id)...)
			}
			pipe.SRem(ctx, index, members...)
			return nil
		})
		return err
	}
	for range replaceAttempts {
		err = c.rdb.Watch(ctx, txf, index)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("replace trackers: %w", err)
	}
	return e.snap, nil
}

// Get loads a tracker snapshot and its heatmap. Both are nil if the snapshot
// does not exist; the heatmap alone is nil if none was stored with it.
func (c *Client) Get(ctx context.Context, id string) (*spatial.RoutineTracker, *spatial.PositionCounter, error) {
	vals, err := c.rdb.MGet(ctx, c.key(blobKey(id)), c.key(heatKey(id))).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("get tracker: %w", err)
	}
	blob, ok := vals[0].(string)
	if !ok {
		return nil, nil, nil
	}
	t, err := spatial.UnmarshalRoutineTracker([]byte(blob))
	if err != nil {
		return nil, nil, fmt.Errorf("get tracker %s: %w", id, err)
	}
	heatBlob, ok := vals[1].(string)
	if !ok {
		return t, nil, nil
	}
	heat, err := spatial.UnmarshalPositionCounter([]byte(heatBlob))
	if err != nil {
		return nil, nil, fmt.Errorf("get heatmap %s: %w", id, err)
	}
	return t, heat, nil
}

// List returns the metadata of every snapshot stored for cfg, oldest first.
func (c *Client) List(ctx context.Context, cfg spatial.Config) ([]model.TrackerSnapshot, error) {
	ids, err := c.rdb.SMembers(ctx, c.key(indexKey(cfg))).Result()
	if err != nil {
		return nil, fmt.Errorf("list tracker ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(metaKey(id))
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	out := make([]model.TrackerSnapshot, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var snap model.TrackerSnapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal tracker meta: %w", err)
		}
		out = append(out, snap)
	}
	slices.SortFunc(out, func(a, b model.TrackerSnapshot) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Configs returns every tracker config that has stored snapshots.
func (c *Client) Configs(ctx context.Context) ([]spatial.Config, error) {
	var out []spatial.Config
	iter := c.rdb.Scan(ctx, 0, c.key("trackers:*"), 100).Iterator()
	for iter.Next(ctx) {
		name, ok := strings.CutPrefix(iter.Val(), c.prefix)
		if !ok {
			continue
		}
		if cfg, ok := parseIndexKey(name); ok {
			out = append(out, cfg)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tracker configs: %w", err)
	}
	slices.SortFunc(out, func(a, b spatial.Config) int { return cmp.Compare(a.String(), b.String()) })
	return out, nil
}

// Delete removes a snapshot, its heatmap and its index entry.
func (c *Client) Delete(ctx context.Context, id string) error {
	meta, err := c.rdb.Get(ctx, c.key(metaKey(id))).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	var snap model.TrackerSnapshot
	if err := json.Unmarshal(meta, &snap); err != nil {
		return fmt.Errorf("unmarshal tracker meta: %w", err)
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.snapshotKeys(id)...)
		pipe.SRem(ctx, c.key(indexKey(snap.Config())), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	return nil
}

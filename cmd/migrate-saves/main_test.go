package main

import (
	"context"
	"testing"

	"github.com/onnwee/chatgov/governance"
	"github.com/onnwee/chatgov/store"
	"github.com/onnwee/chatgov/testutil"
)

func seed(t *testing.T, st store.SnapshotStore, id string, day int) {
	t.Helper()
	snap := governance.Snapshot{
		EventUsage:     map[string]governance.RecordSnapshot{"bad": {Key: "bad", Days: []int{day, day}}},
		CommandUsage:   map[string]governance.RecordSnapshot{"raid": {Key: "raid", Days: []int{day}}},
		LastCleanupDay: day,
	}
	if err := st.Save(context.Background(), id, snap); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestCopySavesRedisToMemory(t *testing.T) {
	_, client := testutil.SetupTestRedis(t)
	src := store.NewRedis(client, "test:")
	dst := store.NewMemory()
	seed(t, src, "a", 4)
	seed(t, src, "b", 7)

	res, err := copySaves(context.Background(), src, dst, []string{"a", "b", "missing"}, false, false)
	if err != nil {
		t.Fatalf("copySaves() error = %v", err)
	}
	if res.Copied != 2 || res.Missing != 1 || res.Skipped != 0 {
		t.Errorf("result = %+v", res)
	}
	got, found, _ := dst.Load(context.Background(), "b")
	if !found || got.LastCleanupDay != 7 || len(got.EventUsage["bad"].Days) != 2 {
		t.Errorf("copied b = %+v (found=%v)", got, found)
	}
}

func TestCopySavesDryRun(t *testing.T) {
	src, dst := store.NewMemory(), store.NewMemory()
	seed(t, src, "a", 1)

	res, err := copySaves(context.Background(), src, dst, []string{"a"}, true, false)
	if err != nil || res.Copied != 1 {
		t.Fatalf("dry run = %+v, %v", res, err)
	}
	if _, found, _ := dst.Load(context.Background(), "a"); found {
		t.Error("dry run wrote to the destination")
	}
}

func TestCopySavesRespectsExisting(t *testing.T) {
	src, dst := store.NewMemory(), store.NewMemory()
	seed(t, src, "a", 1)
	seed(t, dst, "a", 9)
	ctx := context.Background()

	res, err := copySaves(ctx, src, dst, []string{"a"}, false, false)
	if err != nil || res.Skipped != 1 {
		t.Fatalf("without overwrite = %+v, %v", res, err)
	}
	got, _, _ := dst.Load(ctx, "a")
	if got.LastCleanupDay != 9 {
		t.Error("existing save was replaced without --overwrite")
	}

	if res, err = copySaves(ctx, src, dst, []string{"a"}, false, true); err != nil || res.Copied != 1 {
		t.Fatalf("with overwrite = %+v, %v", res, err)
	}
	got, _, _ = dst.Load(ctx, "a")
	if got.LastCleanupDay != 1 {
		t.Error("--overwrite did not replace the save")
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" a, ,b,,c ")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("splitIDs = %v", got)
	}
	if splitIDs("") != nil {
		t.Error("empty input should give nil")
	}
}

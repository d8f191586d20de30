package crdt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReplicaOpMoves(t *testing.T) {
	r := NewReplica[string, string, string]("a")

	first := r.OpMove("root", "x", "x")
	tx := r.OpMoves([]Move[string, string]{
		{Parent: "root", Meta: "y", Child: "y"},
		{Parent: "y", Meta: "z", Child: "z"},
	})

	got := []Timestamp[string]{first.Timestamp, tx[0].Timestamp, tx[1].Timestamp}
	want := []Timestamp[string]{{1, "a"}, {2, "a"}, {3, "a"}}
	if !cmp.Equal(got, want) {
		t.Errorf("got != want; diff = %v\n", cmp.Diff(got, want))
	}

	// Minting does not apply.
	if got := r.State().LogLen(); got != 0 {
		t.Errorf("log length got = %v, expected = 0\n", got)
	}
}

// TestReplicaTransactionCycle applies "X under Y" then "Y under X" as one
// transaction: the second move would form a cycle and is suppressed.
func TestReplicaTransactionCycle(t *testing.T) {
	r := NewReplica[string, string, string]("a")
	mustApply(t, r, r.OpMoves([]Move[string, string]{
		{Parent: "root", Meta: "x", Child: "x"},
		{Parent: "root", Meta: "y", Child: "y"},
	})...)

	mustApply(t, r, r.OpMoves([]Move[string, string]{
		{Parent: "y", Meta: "x", Child: "x"},
		{Parent: "x", Meta: "y", Child: "y"},
	})...)

	want := map[string]TreeNode[string, string]{
		"x": node("y", "x"),
		"y": node("root", "y"),
	}
	if got := r.State().Tree().Nodes(); !cmp.Equal(got, want) {
		t.Errorf("got != want; diff = %v\n", cmp.Diff(got, want))
	}
	if got := r.State().LogLen(); got != 4 {
		t.Errorf("log length got = %v, expected = 4\n", got)
	}
}

// TestReplicaClockFollowsRemote checks that ops minted after merging a remote
// op sort after it.
func TestReplicaClockFollowsRemote(t *testing.T) {
	a := NewReplica[string, string, string]("a")
	b := NewReplica[string, string, string]("b")

	for i := 0; i < 5; i++ {
		mustApply(t, b, b.OpMove("root", "x", "x"))
	}
	remote := b.OpMove("root", "y", "y")
	mustApply(t, a, remote)

	local := a.OpMove("root", "z", "z")
	if !remote.Timestamp.Less(local.Timestamp) {
		t.Errorf("local op %v does not sort after remote op %v\n", local.Timestamp, remote.Timestamp)
	}
}

// TestReplicaTruncateLog truncates at a caller supplied stable point and
// checks that a rejected late op neither changes the tree nor the clock.
func TestReplicaTruncateLog(t *testing.T) {
	a := NewReplica[string, string, string]("a")
	b := NewReplica[string, string, string]("b")

	mustApply(t, a, a.OpMove("root", "x", "x")) // (1,a)
	mustApply(t, a, a.OpMove("root", "y", "y")) // (2,a)
	mustApply(t, a, a.OpMove("root", "z", "z")) // (3,a)

	if got := a.TruncateLogBefore(Timestamp[string]{Counter: 2, Actor: "a"}); got != 1 {
		t.Errorf("removed got = %v, expected = 1\n", got)
	}
	if got := a.State().LogLen(); got != 2 {
		t.Errorf("log length got = %v, expected = 2\n", got)
	}

	late := b.OpMove("x", "w", "w") // (1,b)
	if err := a.ApplyOp(late); !errors.Is(err, ErrBeforeTruncation) {
		t.Fatalf("got = %v, expected ErrBeforeTruncation\n", err)
	}
	if _, ok := a.State().Tree().Find("w"); ok {
		t.Errorf("late op was applied\n")
	}
	if got := a.Time().Counter; got != 3 {
		t.Errorf("counter got = %v, expected = 3\n", got)
	}
}

func TestReplicaApplyOpsReportsRejections(t *testing.T) {
	a := NewReplica[string, string, string]("a")
	tx := a.OpMoves([]Move[string, string]{
		{Parent: "root", Meta: "x", Child: "x"},
		{Parent: "root", Meta: "y", Child: "y"},
	})
	mustApply(t, a, tx[0])

	// tx[0] is redelivered unchanged, the forgery reuses its timestamp.
	forged := tx[0]
	forged.Meta = "forged"
	err := a.ApplyOps([]OpMove[string, string, string]{tx[0], forged, tx[1]})
	if !errors.Is(err, ErrTimestampConflict) {
		t.Fatalf("got = %v, expected ErrTimestampConflict\n", err)
	}

	want := map[string]TreeNode[string, string]{
		"x": node("root", "x"),
		"y": node("root", "y"),
	}
	if got := a.State().Tree().Nodes(); !cmp.Equal(got, want) {
		t.Errorf("got != want; diff = %v\n", cmp.Diff(got, want))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := NewReplica[string, string, string]("a")
	mustApply(t, a, a.OpMoves([]Move[string, string]{
		{Parent: "root", Meta: "docs", Child: "docs"},
		{Parent: "docs", Meta: "notes.txt", Child: "notes"},
		{Parent: "root", Meta: "notes.txt", Child: "notes"},
	})...)

	path := filepath.Join(t.TempDir(), "tree.json")
	if err := Save(path, a); err != nil {
		t.Fatalf("error: %v\n", err)
	}

	b, err := Load[string, string, string](path, "b")
	if err != nil {
		t.Fatalf("error: %v\n", err)
	}

	if diff := cmp.Diff(b.State().Tree().Nodes(), a.State().Tree().Nodes()); diff != "" {
		t.Errorf("trees differ; diff = %v\n", diff)
	}
	if diff := cmp.Diff(b.State().Log(), a.State().Log()); diff != "" {
		t.Errorf("logs differ; diff = %v\n", diff)
	}
	if got := b.Actor(); got != "b" {
		t.Errorf("actor got = %v, expected = b\n", got)
	}

	next := b.OpMove("root", "later", "later")
	if want := (Timestamp[string]{4, "b"}); !cmp.Equal(next.Timestamp, want) {
		t.Errorf("got != want; diff = %v\n", cmp.Diff(next.Timestamp, want))
	}
}

func TestFromSnapshotRejectsCycle(t *testing.T) {
	snap := Snapshot[string, string, string]{
		Actor: "a",
		Nodes: []NodeEntry[string, string]{
			{Child: "x", Parent: "y", Meta: "x"},
			{Child: "y", Parent: "x", Meta: "y"},
		},
	}
	if _, err := FromSnapshot("a", snap); err == nil {
		t.Errorf("expected an error for a cyclic snapshot\n")
	}
}

// TestSaveIsReproducible saves two replicas that received the same ops in
// different orders and expects identical files, floor included.
func TestSaveIsReproducible(t *testing.T) {
	a := NewReplica[string, string, string]("a")
	b := NewReplica[string, string, string]("a")

	var ops []OpMove[string, string, string]
	for i := 0; i < 20; i++ {
		ops = append(ops, OpMove[string, string, string]{
			Timestamp: Timestamp[string]{Counter: uint64(i + 1), Actor: "a"},
			Parent:    "root",
			Meta:      "m",
			Child:     string(rune('a' + i)),
		})
	}
	mustApply(t, a, ops...)
	for i := len(ops) - 1; i >= 0; i-- {
		mustApply(t, b, ops[i])
	}
	a.TruncateLogBefore(Timestamp[string]{Counter: 5, Actor: "a"})
	b.TruncateLogBefore(Timestamp[string]{Counter: 5, Actor: "a"})

	dir := t.TempDir()
	var files [][]byte
	for i, r := range []*Replica[string, string, string]{a, a, b} {
		path := filepath.Join(dir, string(rune('0'+i))+".json")
		if err := Save(path, r); err != nil {
			t.Fatalf("error: %v\n", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("error: %v\n", err)
		}
		files = append(files, data)
	}
	for i := 1; i < len(files); i++ {
		if !bytes.Equal(files[0], files[i]) {
			t.Errorf("snapshot %d differs; diff = %v\n", i, cmp.Diff(string(files[0]), string(files[i])))
		}
	}

	loaded, err := Load[string, string, string](filepath.Join(dir, "0.json"), "c")
	if err != nil {
		t.Fatalf("error: %v\n", err)
	}
	if floor, ok := loaded.State().Floor(); !ok || floor.Counter != 5 {
		t.Errorf("floor got = %v, %v\n", floor, ok)
	}
	if err := loaded.ApplyOp(OpMove[string, string, string]{Timestamp: Timestamp[string]{Counter: 1, Actor: "z"}}); !errors.Is(err, ErrBeforeTruncation) {
		t.Errorf("got = %v, expected ErrBeforeTruncation\n", err)
	}
}

func mustApply(t *testing.T, r *Replica[string, string, string], ops ...OpMove[string, string, string]) {
	t.Helper()
	if err := r.ApplyOps(ops); err != nil {
		t.Fatalf("error: %v\n", err)
	}
}

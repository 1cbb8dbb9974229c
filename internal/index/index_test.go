package index

import (
	"errors"
	"testing"
	"time"

	"github.com/tonykolomeytsev/figx/internal/figma"
)

func node(id, name string) figma.Node {
	return figma.Node{ID: id, Name: name, Type: "COMPONENT", Visible: true}
}

func TestResolveKnownNameIsImmediate(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Add(node("1:2", "Icons / Puzzle"))

	select {
	case res := <-idx.Resolve("Icons / Puzzle"):
		if res.Err != nil || res.Node.ID != "1:2" {
			t.Fatalf("resolution = %#v", res)
		}
	default:
		t.Fatal("known name did not resolve immediately")
	}
}

func TestResolveWaitsForParser(t *testing.T) {
	t.Parallel()

	idx := New()
	ch := idx.Resolve("Icons / Late")

	select {
	case <-ch:
		t.Fatal("resolved before the parser saw the node")
	case <-time.After(10 * time.Millisecond):
	}

	idx.Add(node("7:7", "Icons / Late"))
	select {
	case res := <-ch:
		if res.Err != nil || res.Node.ID != "7:7" {
			t.Fatalf("resolution = %#v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never woken")
	}
}

func TestMarkCompleteDeliversNotFound(t *testing.T) {
	t.Parallel()

	idx := New()
	ch := idx.Resolve("Icons / Missing")
	idx.MarkComplete(nil)

	res := <-ch
	if !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", res.Err)
	}

	// Resolutions after completion answer immediately.
	res = <-idx.Resolve("Icons / AlsoMissing")
	if !errors.Is(res.Err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", res.Err)
	}
}

func TestMarkCompleteDeliversParserFailure(t *testing.T) {
	t.Parallel()

	idx := New()
	ch := idx.Resolve("Icons / Any")
	boom := errors.New("stream broke")
	idx.MarkComplete(boom)

	if res := <-ch; !errors.Is(res.Err, boom) {
		t.Fatalf("err = %v, want parser failure", res.Err)
	}
}

func TestIndexIsMonotonic(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Add(node("1:1", "Icons / Dup"))
	idx.Add(node("2:2", "Icons / Dup"))

	res := <-idx.Resolve("Icons / Dup")
	if res.Node.ID != "1:1" {
		t.Fatalf("id = %s, want the first discovered id", res.Node.ID)
	}
	// Later resolutions return the same id forever.
	res = <-idx.Resolve("Icons / Dup")
	if res.Node.ID != "1:1" {
		t.Fatalf("second resolution id = %s", res.Node.ID)
	}
}

func TestSnapshotPreservesDiscoveryOrder(t *testing.T) {
	t.Parallel()

	idx := New()
	idx.Add(node("1:1", "B"))
	idx.Add(node("2:2", "A"))

	snap := idx.Snapshot()
	if len(snap) != 2 || snap[0].Name != "B" || snap[1].Name != "A" {
		t.Fatalf("snapshot = %#v", snap)
	}
}

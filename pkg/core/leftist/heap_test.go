package leftist

import (
	"errors"
	"math/rand"
	"sort"
	"testing"
)

func intLess(a, b int) bool { return a < b }

// checkInvariants walks the tree rooted at h.root and verifies the min-heap
// property, the leftist property, cached null path lengths and the size.
func checkInvariants[T any](t *testing.T, h *Heap[T]) {
	t.Helper()

	count := 0
	var walk func(i int32) int32
	walk = func(i int32) int32 {
		if i == none {
			return 0
		}
		count++
		n := h.nodes[i]
		for _, child := range []int32{n.left, n.right} {
			if child != none && h.less(h.nodes[child].value, n.value) {
				t.Fatalf("min-heap property violated at node %d", i)
			}
		}
		leftNPL := walk(n.left)
		rightNPL := walk(n.right)
		if leftNPL < rightNPL {
			t.Fatalf("leftist property violated at node %d: left npl %d < right npl %d", i, leftNPL, rightNPL)
		}
		if n.npl != rightNPL+1 {
			t.Fatalf("stale npl at node %d: cached %d, actual %d", i, n.npl, rightNPL+1)
		}
		return n.npl
	}
	walk(h.root)

	if count != h.Len() {
		t.Fatalf("reachable nodes %d != Len() %d", count, h.Len())
	}
}

func TestPushPopOrder(t *testing.T) {
	h := New(intLess)
	values := []int{9, 3, 7, 1, 8, 2, 6, 4, 5, 0}
	for _, v := range values {
		h.Push(v)
		checkInvariants(t, h)
	}

	if top, ok := h.Top(); !ok || top != 0 {
		t.Fatalf("Top() = %d, %v; want 0, true", top, ok)
	}

	for want := 0; want < len(values); want++ {
		got, err := h.Pop()
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}
		if got != want {
			t.Fatalf("Pop() = %d, want %d", got, want)
		}
		checkInvariants(t, h)
	}
	if !h.IsEmpty() {
		t.Error("Heap should be empty")
	}
}

func TestPopEmpty(t *testing.T) {
	h := New(intLess)
	if _, err := h.Pop(); !errors.Is(err, ErrEmptyHeap) {
		t.Fatalf("Pop on empty heap: got %v, want ErrEmptyHeap", err)
	}
	if _, ok := h.Top(); ok {
		t.Fatal("Top on empty heap should report false")
	}

	h.Push(1)
	h.Pop()
	if _, err := h.Pop(); !errors.Is(err, ErrEmptyHeap) {
		t.Fatalf("Pop after draining: got %v, want ErrEmptyHeap", err)
	}
}

func TestDuplicates(t *testing.T) {
	h := New(intLess)
	for i := 0; i < 20; i++ {
		h.Push(i % 3)
	}
	checkInvariants(t, h)

	prev := -1
	for !h.IsEmpty() {
		v, _ := h.Pop()
		if v < prev {
			t.Fatalf("out of order: %d after %d", v, prev)
		}
		prev = v
	}
}

func TestMeld(t *testing.T) {
	a := New(intLess)
	b := New(intLess)
	for i := 0; i < 10; i++ {
		a.Push(i * 2)
	}
	for i := 0; i < 25; i++ {
		b.Push(i*2 + 1)
	}

	a.Meld(b)
	checkInvariants(t, a)

	if a.Len() != 35 {
		t.Fatalf("Len() after meld = %d, want 35", a.Len())
	}
	if !b.IsEmpty() {
		t.Fatal("melded heap should be empty")
	}
	if _, err := b.Pop(); !errors.Is(err, ErrEmptyHeap) {
		t.Fatalf("Pop on consumed heap: got %v", err)
	}

	// The consumed heap stays usable.
	b.Push(100)
	if v, _ := b.Top(); v != 100 {
		t.Fatalf("consumed heap Top() = %d, want 100", v)
	}

	for want := 0; want < 35; want++ {
		got, _ := a.Pop()
		if got != want {
			t.Fatalf("Pop() = %d, want %d", got, want)
		}
	}
}

func TestMeldEdgeCases(t *testing.T) {
	h := New(intLess)
	h.Push(5)

	h.Meld(nil)
	h.Meld(h)
	h.Meld(New(intLess))
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}

	empty := New(intLess)
	empty.Meld(h)
	checkInvariants(t, empty)
	if v, _ := empty.Top(); v != 5 || empty.Len() != 1 {
		t.Fatalf("meld into empty heap: top %d len %d", v, empty.Len())
	}
}

func TestFreeSlotsAreReused(t *testing.T) {
	h := New(intLess)
	for i := 0; i < 8; i++ {
		h.Push(i)
	}
	for i := 0; i < 8; i++ {
		h.Pop()
	}
	for i := 0; i < 8; i++ {
		h.Push(i)
	}
	if len(h.nodes) != 8 {
		t.Errorf("arena grew to %d nodes, want 8", len(h.nodes))
	}
}

// Arbitrary push/pop/meld sequences keep both heap properties, and the size
// after N pushes and M pops is N-M.
func TestRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		h := New(intLess)
		var model []int
		pushes, pops := 0, 0

		for op := 0; op < 300; op++ {
			switch r := rng.Intn(10); {
			case r < 5:
				v := rng.Intn(1000)
				h.Push(v)
				model = append(model, v)
				pushes++
			case r < 8:
				v, err := h.Pop()
				if len(model) == 0 {
					if !errors.Is(err, ErrEmptyHeap) {
						t.Fatalf("expected ErrEmptyHeap, got %v", err)
					}
					continue
				}
				sort.Ints(model)
				if err != nil || v != model[0] {
					t.Fatalf("Pop() = %d, %v; want %d", v, err, model[0])
				}
				model = model[1:]
				pops++
			default:
				other := New(intLess)
				for n := rng.Intn(20); n > 0; n-- {
					v := rng.Intn(1000)
					other.Push(v)
					model = append(model, v)
					pushes++
				}
				// Pop from other before melding so its arena has free slots.
				if !other.IsEmpty() && rng.Intn(2) == 0 {
					v, _ := other.Pop()
					for i, m := range model {
						if m == v {
							model = append(model[:i], model[i+1:]...)
							break
						}
					}
					pops++
				}
				h.Meld(other)
			}

			checkInvariants(t, h)
			if h.Len() != pushes-pops {
				t.Fatalf("Len() = %d, want %d", h.Len(), pushes-pops)
			}
		}
	}
}

type weighted struct {
	weight uint64
	label  string
}

func TestCustomOrdering(t *testing.T) {
	h := New(func(a, b weighted) bool { return a.weight < b.weight })
	h.Push(weighted{4, "a"})
	h.Push(weighted{2, "c"})
	h.Push(weighted{3, "b"})

	first, _ := h.Pop()
	second, _ := h.Pop()
	if first.label != "c" || second.label != "b" {
		t.Fatalf("unexpected order %q, %q", first.label, second.label)
	}
}

func BenchmarkPushPop(b *testing.B) {
	h := New(intLess)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < b.N; i++ {
		h.Push(rng.Int())
		if h.Len() > 512 {
			h.Pop()
		}
	}
}

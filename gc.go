package lila

// gcColor is the tri-color mark state of a heap object during a collection
// cycle. Objects start white; the root scan turns reachable objects gray;
// the mark phase drains the gray set to black.
type gcColor uint8

const (
	colorWhite gcColor = iota
	colorGray
	colorBlack
)

// tracer is implemented by the VM: it knows the live roots (the root
// environment, the value stack, and the import cache) and how to walk the
// edges out of a given heap object. The
// collector itself carries no domain knowledge — it only sequences the
// mark and sweep phases and mutates colors.
type tracer interface {
	// traceRoots calls mark for every root Value currently reachable
	// from outside the heap.
	traceRoots(mark func(Value))
	// traceEdges calls mark for every Value directly reachable from obj.
	traceEdges(obj heapObject, mark func(Value))
}

// collector is a stop-the-world tri-color mark/sweep collector over the
// heap objects allocated through a VM, with an incremental step primitive
// a caller can drive a bounded amount of work through between allocations
// instead of always paying for a full collection.
type collector struct {
	all   heapObject // linked list of every live/white/gray/black object
	count int        // live object count since last sweep
	gray  []heapObject
	t     tracer
}

func newCollector(t tracer) *collector {
	return &collector{t: t}
}

// register links a freshly allocated object into the heap, colored white.
// Every Value constructor in value.go that allocates a heap object routes
// through here.
func (c *collector) register(o heapObject) {
	h := o.header()
	h.color = colorWhite
	h.next = c.all
	c.all = o
	c.count++
}

// collect runs a full stop-the-world mark/sweep: marks from roots,
// transitively marks edges, then sweeps every white object from the heap
// list, freeing it and leaving the rest black (reset to white for the next
// cycle).
func (c *collector) collect() (swept int) {
	c.markRoots()
	c.markAll()
	swept = c.sweepAll()
	c.resetColors()
	return swept
}

func (c *collector) markRoots() {
	c.gray = c.gray[:0]
	c.t.traceRoots(func(v Value) { c.mark(v) })
}

func (c *collector) mark(v Value) {
	if !v.k.isHeap() || v.obj == nil {
		return
	}
	h := v.obj.header()
	if h.color != colorWhite {
		return
	}
	h.color = colorGray
	c.gray = append(c.gray, v.obj)
}

func (c *collector) markAll() {
	for len(c.gray) > 0 {
		n := len(c.gray) - 1
		obj := c.gray[n]
		c.gray = c.gray[:n]
		obj.header().color = colorBlack
		c.t.traceEdges(obj, func(v Value) { c.mark(v) })
	}
}

func (c *collector) sweepAll() int {
	swept := 0
	var kept heapObject
	cur := c.all
	for cur != nil {
		next := cur.header().next
		if cur.header().color == colorWhite {
			swept++
			c.count--
		} else {
			cur.header().next = kept
			kept = cur
		}
		cur = next
	}
	c.all = kept
	return swept
}

func (c *collector) resetColors() {
	for cur := c.all; cur != nil; cur = cur.header().next {
		cur.header().color = colorWhite
	}
}

// step performs up to budget units of incremental mark work, one object's
// worth of edge-tracing per unit, resuming the gray set wherever the
// previous call left it. When the gray set drains to empty it sweeps and
// starts a fresh root scan on the next call. Only the edge tracing is
// bounded by budget: the root scan and the sweep each run to completion
// within the call in which they happen.
func (c *collector) step(budget int) {
	if budget <= 0 {
		return
	}
	if len(c.gray) == 0 {
		c.markRoots()
	}
	for budget > 0 && len(c.gray) > 0 {
		n := len(c.gray) - 1
		obj := c.gray[n]
		c.gray = c.gray[:n]
		obj.header().color = colorBlack
		c.t.traceEdges(obj, func(v Value) { c.mark(v) })
		budget--
	}
	if len(c.gray) == 0 {
		c.sweepAll()
		c.resetColors()
	}
}

// liveCount returns the number of heap objects registered and not yet
// swept — used by the VM to decide when GCAllocThreshold has been crossed.
func (c *collector) liveCount() int {
	return c.count
}

// Package base4 implements a growable base-4 integer: an ordered sequence of
// 2-bit symbols packed into fixed-width blocks. The quadtree uses it to
// record, per entity, the quadrant chosen at each level on the way down,
// which costs 2 bits per level instead of a byte or a pointer.
package base4

import "fmt"

// BlockSymbols is the number of 2-bit symbols a single block holds, filling
// its 128-bit accumulator exactly.
const BlockSymbols = 64

// Int is a sequence of symbols in 0..=3 organized into blocks. Every block
// except the newest is full, which keeps random access O(1). Appends go to
// the newest block, removals come from its tail, and a block is dropped the
// instant it empties. The zero value is ready to use.
//
// Out-of-range symbols and reads past the end are programmer errors and
// panic; they are never produced by well-formed tree operations.
type Int struct {
	blocks []Block
}

// Push appends one symbol, allocating a new block when the newest one is
// full. Panics if v > 3.
func (n *Int) Push(v uint8) {
	if len(n.blocks) == 0 || n.blocks[len(n.blocks)-1].Len() == BlockSymbols {
		n.blocks = append(n.blocks, Block{})
	}
	n.blocks[len(n.blocks)-1].Push(v)
}

// PushAll appends symbols in order.
func (n *Int) PushAll(vs []uint8) {
	for _, v := range vs {
		n.Push(v)
	}
}

// Pop removes and returns the most recently pushed symbol. Panics when the
// integer is empty.
func (n *Int) Pop() uint8 {
	if len(n.blocks) == 0 {
		panic("base4: pop from an empty integer")
	}

	last := &n.blocks[len(n.blocks)-1]
	v := last.Pop()
	if last.Len() == 0 {
		n.blocks = n.blocks[:len(n.blocks)-1]
	}
	return v
}

// PopAll drains the integer, returning all symbols in push order.
func (n *Int) PopAll() []uint8 {
	vs := make([]uint8, 0, n.Len())
	for i := range n.blocks {
		vs = append(vs, n.blocks[i].PopAll()...)
	}
	n.blocks = n.blocks[:0]
	return vs
}

// PeekAt returns the i-th pushed symbol without removing it. Panics when
// i is out of range.
func (n *Int) PeekAt(i int) uint8 {
	if i < 0 || i >= n.Len() {
		panic(fmt.Sprintf("base4: peek index %d out of bounds (len=%d)", i, n.Len()))
	}
	return n.blocks[i/BlockSymbols].PeekAt(i % BlockSymbols)
}

// PeekAll returns all symbols in push order without removing them.
func (n *Int) PeekAll() []uint8 {
	vs := make([]uint8, 0, n.Len())
	for i := range n.blocks {
		vs = append(vs, n.blocks[i].PeekAll()...)
	}
	return vs
}

// Len is the total number of symbols across all blocks.
func (n *Int) Len() int {
	total := 0
	for i := range n.blocks {
		total += n.blocks[i].Len()
	}
	return total
}

// Blocks is the number of allocated blocks.
func (n *Int) Blocks() int {
	return len(n.blocks)
}

// Block packs up to BlockSymbols symbols, 2 bits each, into a 128-bit
// accumulator split across two machine words. The most recently pushed
// symbol lives in the low bits.
type Block struct {
	size int
	hi   uint64
	lo   uint64
}

func (b *Block) Push(v uint8) {
	if v > 3 {
		panic(fmt.Sprintf("base4: symbol %d outside 0..=3", v))
	}
	if b.size == BlockSymbols {
		panic("base4: push to a full block")
	}

	b.hi = b.hi<<2 | b.lo>>62
	b.lo = b.lo<<2 | uint64(v)
	b.size++
}

func (b *Block) Pop() uint8 {
	if b.size == 0 {
		panic("base4: pop from an empty block")
	}

	v := uint8(b.lo & 0b11)
	b.lo = b.lo>>2 | b.hi<<62
	b.hi >>= 2
	b.size--
	return v
}

// PopAll drains the block, returning its symbols in push order.
func (b *Block) PopAll() []uint8 {
	vs := make([]uint8, b.size)
	for i := b.size - 1; i >= 0; i-- {
		vs[i] = b.Pop()
	}
	return vs
}

// PeekAt returns the i-th pushed symbol of this block. The i-th symbol sits
// 2*(size-i-1) bits up from the accumulator's low end.
func (b *Block) PeekAt(i int) uint8 {
	if i < 0 || i >= b.size {
		panic(fmt.Sprintf("base4: peek index %d out of bounds (len=%d)", i, b.size))
	}

	shift := uint(2 * (b.size - i - 1))
	if shift >= 64 {
		return uint8(b.hi >> (shift - 64) & 0b11)
	}
	return uint8(b.lo >> shift & 0b11)
}

// PeekAll returns the block's symbols in push order.
func (b *Block) PeekAll() []uint8 {
	vs := make([]uint8, b.size)
	for i := range vs {
		vs[i] = b.PeekAt(i)
	}
	return vs
}

// Len is the number of symbols currently held.
func (b *Block) Len() int {
	return b.size
}

package emu

const pageSize = 1 << 16

// A sparse byte-addressable memory. Pages are allocated on first write;
// unwritten memory reads as zero.
type memory struct {
	pages map[uint64][]byte
}

func newMemory() *memory {
	return &memory{pages: make(map[uint64][]byte)}
}

func (m *memory) write(addr uint64, data []byte) {
	for len(data) > 0 {
		page := m.pages[addr/pageSize]
		if page == nil {
			page = make([]byte, pageSize)
			m.pages[addr/pageSize] = page
		}
		n := copy(page[addr%pageSize:], data)
		data = data[n:]
		addr += uint64(n)
	}
}

func (m *memory) read(addr uint64, data []byte) {
	for len(data) > 0 {
		off := addr % pageSize
		n := pageSize - int(off)
		if n > len(data) {
			n = len(data)
		}

		if page := m.pages[addr/pageSize]; page != nil {
			copy(data[:n], page[off:])
		} else {
			clear(data[:n])
		}
		data = data[n:]
		addr += uint64(n)
	}
}

// Package vcd implements spec.md 6's waveform dump: a Value Change Dump
// writer tracking the elaborated instance hierarchy as nested $scope
// blocks, one $var per variable, and one changed-value line per signal
// per dump() call. Grounded on the teacher's pkg/emulator trace writer
// (pkg/emulator/io_ports.go's port-activity log, the closest thing the
// teacher has to a timestamped external trace) and the VCD format itself,
// which is IEEE 1364's standard text interchange for waveform viewers.
package vcd

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/hdlsim/celoxgo/pkg/flatten"
	"github.com/hdlsim/celoxgo/pkg/jitcode"
	"github.com/hdlsim/celoxgo/pkg/model"
)

// signalInfo is one $var declaration's bookkeeping.
type signalInfo struct {
	addr  model.AbsoluteAddr
	width int
	id    string
}

// Writer accumulates and flushes a single VCD file across repeated
// Dump calls, caching each signal's last-written value so only real
// changes are emitted (spec.md 6's "dumps changed signals only" rule).
type Writer struct {
	f   *os.File
	w   *bufio.Writer
	sig []signalInfo
	last map[model.AbsoluteAddr]uint64
	have map[model.AbsoluteAddr]bool
}

// Open creates path and writes the VCD header: date/version/timescale,
// one nested $scope module per elaborated instance (in depth-first,
// parent-before-child order, matching design.Instances), one $var per
// variable, then $enddefinitions and an initial $dumpvars of all zeros.
func Open(path string, design *flatten.Design, reg *flatten.Registry) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	vw := &Writer{f: f, w: w, last: make(map[model.AbsoluteAddr]uint64), have: make(map[model.AbsoluteAddr]bool)}

	fmt.Fprintf(w, "$date\n   generated\n$end\n")
	fmt.Fprintf(w, "$version\n   celoxgo\n$end\n")
	fmt.Fprintf(w, "$timescale 1ns $end\n")

	nextID := 0
	genID := func() string {
		id := encodeID(nextID)
		nextID++
		return id
	}

	depth := 0
	for _, info := range design.Instances {
		target := len(info.Path)
		for depth > target {
			fmt.Fprintf(w, "$upscope $end\n")
			depth--
		}
		name := info.ModuleName
		if n := len(info.Path); n > 0 {
			name = info.Path[n-1].ChildName
		}
		fmt.Fprintf(w, "$scope module %s $end\n", name)
		depth++

		src := reg.Source[info.ModuleName]
		vars := append([]*model.Variable(nil), src.Vars...)
		sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
		for _, v := range vars {
			varID, _ := src.VarByName(v.Name)
			addr := model.AbsoluteAddr{Instance: info.ID, Var: varID}
			id := genID()
			vw.sig = append(vw.sig, signalInfo{addr: addr, width: v.Width, id: id})
			fmt.Fprintf(w, "$var wire %d %s %s $end\n", v.Width, id, v.Name)
		}
	}
	for depth > 0 {
		fmt.Fprintf(w, "$upscope $end\n")
		depth--
	}
	fmt.Fprintf(w, "$enddefinitions $end\n")
	fmt.Fprintf(w, "$dumpvars\n")
	for _, s := range vw.sig {
		writeValue(w, s, 0)
		vw.last[s.addr] = 0
		vw.have[s.addr] = true
	}
	fmt.Fprintf(w, "$end\n")

	return vw, w.Flush()
}

// Dump emits "#t" followed by one line per signal whose value changed
// since the last Dump (or since Open, for the first call), reading
// current values out of mem's stable region.
func (vw *Writer) Dump(t int64, mem *jitcode.Memory) error {
	fmt.Fprintf(vw.w, "#%d\n", t)
	for _, s := range vw.sig {
		addr := model.RegionedAbsoluteAddr{Addr: s.addr, Region: model.StableRegion}
		width := s.width
		if width > 64 {
			width = 64
		}
		v, _ := mem.ReadBits(addr, 0, width)
		if vw.have[s.addr] && vw.last[s.addr] == v {
			continue
		}
		writeValue(vw.w, s, v)
		vw.last[s.addr] = v
		vw.have[s.addr] = true
	}
	return vw.w.Flush()
}

// Close flushes and closes the underlying file.
func (vw *Writer) Close() error {
	if err := vw.w.Flush(); err != nil {
		return err
	}
	return vw.f.Close()
}

func writeValue(w *bufio.Writer, s signalInfo, v uint64) {
	if s.width == 1 {
		bit := '0'
		if v&1 != 0 {
			bit = '1'
		}
		fmt.Fprintf(w, "%c%s\n", bit, s.id)
		return
	}
	buf := make([]byte, s.width)
	for i := 0; i < s.width; i++ {
		bit := (v >> uint(s.width-1-i)) & 1
		if bit != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	fmt.Fprintf(w, "b%s %s\n", buf, s.id)
}

// encodeID generates VCD's conventional base-94 identifier code from a
// dense counter, using the printable ASCII range [33, 126] as digits
// (spec.md 6's "base-94 id allocation starting at 33").
func encodeID(n int) string {
	const base = 94
	if n == 0 {
		return string(rune(33))
	}
	var digits []byte
	for n > 0 {
		digits = append(digits, byte(33+n%base))
		n /= base
	}
	// Reverse into most-significant-digit-first order.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

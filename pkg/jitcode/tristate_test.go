package jitcode

import (
	"testing"

	"github.com/hdlsim/celoxgo/pkg/model"
)

// Bits are given as (value, mask) pairs, mask bit 1 meaning "unknown" (X).

func TestTriAndKnownZeroDominatesUnknown(t *testing.T) {
	// 0 & X = 0, not X -- a known-0 operand pins the result regardless of
	// the other operand's unknown bits (spec.md 8 Testable Property 5).
	v, m := triAnd(0b0, 0b0, 0b0, 0b1, 1)
	if v != 0 || m != 0 {
		t.Errorf("0 & X = (%b,%b), want (0,0)", v, m)
	}
}

func TestTriAndUnknownAndKnownOneIsUnknown(t *testing.T) {
	v, m := triAnd(0b1, 0b0, 0b0, 0b1, 1)
	if m != 0b1 {
		t.Errorf("1 & X mask = %b, want unknown", m)
	}
	_ = v
}

func TestTriOrKnownOneDominatesUnknown(t *testing.T) {
	// 1 | X = 1, not X.
	v, m := triOr(0b1, 0b0, 0b0, 0b1, 1)
	if v != 1 || m != 0 {
		t.Errorf("1 | X = (%b,%b), want (1,0)", v, m)
	}
}

func TestTriOrUnknownAndKnownZeroIsUnknown(t *testing.T) {
	v, m := triOr(0b0, 0b0, 0b0, 0b1, 1)
	if m != 0b1 {
		t.Errorf("0 | X mask = %b, want unknown", m)
	}
	_ = v
}

func TestTriXorAnyUnknownOperandIsUnknown(t *testing.T) {
	_, m := triXor(0b1, 0b0, 0b0, 0b1, 1)
	if m != 0b1 {
		t.Errorf("1 ^ X mask = %b, want unknown", m)
	}
}

func TestTriXorBothKnownComputesNormally(t *testing.T) {
	v, m := triXor(0b101, 0, 0b011, 0, 3)
	if v != 0b110 || m != 0 {
		t.Errorf("101 ^ 011 = (%b,%b), want (110,0)", v, m)
	}
}

func TestTriWidePerBitIndependence(t *testing.T) {
	// bit0: 1 & X -> X; bit1: 0 & X -> 0; bit2: 1 & 1 -> 1.
	lv, lm := uint64(0b101), uint64(0)
	rv, rm := uint64(0b100), uint64(0b011)
	v, m := triAnd(lv, lm, rv, rm, 3)
	if m != 0b001 {
		t.Errorf("mask = %03b, want bit0 unknown only (001)", m)
	}
	if v&0b100 == 0 {
		t.Errorf("bit2 = 0, want known-1 (1 & 1)")
	}
}

func TestEvalBinaryFourStateArithmeticPropagatesXFromEitherOperand(t *testing.T) {
	unknown := regVal{v: 0, m: 1}
	known := regVal{v: 5, m: 0}

	for _, op := range []model.BinOp{model.OpAdd, model.OpSub, model.OpMul, model.OpLt} {
		r := evalBinary(op, unknown, known, 8, false, true)
		if r.m == 0 {
			t.Errorf("op %v with an unknown operand produced a fully-known result, want the whole value unknown", op)
		}
	}
}

func TestEvalBinaryFourStateBitwiseAndUsesTriStateRules(t *testing.T) {
	// 0 & X must stay known-0 even in four-state mode: bitwise AND gets
	// its own tri-state table instead of the blanket X-propagation rule.
	zero := regVal{v: 0, m: 0}
	unknownBit := regVal{v: 0, m: 1}
	r := evalBinary(model.OpAnd, zero, unknownBit, 1, false, true)
	if r.m != 0 || r.v != 0 {
		t.Errorf("0 & X = (%d,%d), want (0,0)", r.v, r.m)
	}
}

func TestEvalBinaryTwoStateIgnoresMask(t *testing.T) {
	// Outside four-state mode the mask is never consulted: a design
	// built with fourState=false never produces nonzero masks in the
	// first place, but evalBinary itself must not start honoring one.
	unknown := regVal{v: 0, m: 1}
	known := regVal{v: 3, m: 0}
	r := evalBinary(model.OpAdd, unknown, known, 8, false, false)
	if r.v != 3 {
		t.Errorf("two-state add = %d, want 3 (mask ignored)", r.v)
	}
}

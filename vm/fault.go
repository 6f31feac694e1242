package vm

import (
	"golang.org/x/arch/x86/x86asm"

	"vmcore/defs"
)

// FaultInfo is everything the fault dispatcher needs about one page fault
// (spec.md §4.7): the faulting address, whether the access was a write, and
// the stack pointer at the time of the fault (used only for the stack-
// growth eligibility check). InstrBytes is optional: when supplied, it is
// decoded to refine the stack-growth slack window (SPEC_FULL.md domain
// stack, x86asm wiring); nil falls back to the constant StackSlack.
type FaultInfo struct {
	VA         uintptr
	Write      bool
	RSP        uintptr
	InstrBytes []byte
}

// HandleFault is the page-fault dispatcher (spec.md §4.7), run in exactly
// this order: reject an invalid address, look the address up in the SPT,
// reject a write to a read-only page, claim an already-tracked page, or —
// failing all of that — decide whether the fault is eligible for automatic
// stack growth.
func (s *Space) HandleFault(fi FaultInfo) defs.Err_t {
	if fi.VA == 0 {
		return defs.EFAULT
	}

	s.lock()
	defer s.unlock()

	va := pgRoundDown(fi.VA)
	if p, ok := s.SPT.Find(va); ok {
		if fi.Write && !p.Writable {
			return defs.EFAULT
		}
		// Two threads can fault on the same VA concurrently; claimDedup
		// collapses them into the single claim that actually runs.
		if e := s.claimDedup(p); e != 0 {
			return e
		}
		return 0
	}

	if !s.stackGrowEligible(fi) {
		return defs.EFAULT
	}

	if !s.AllocPage(KindAnon, va, true) {
		return defs.EFAULT
	}
	p, _ := s.SPT.Find(va)
	if e := s.claimDedup(p); e != 0 {
		return e
	}
	return 0
}

// stackGrowEligible implements spec.md §4.7's stack-growth check: the fault
// must land below USER_STACK, within StackCap bytes of it, and no
// further than a small slack distance below the current stack pointer (to
// admit a push that writes below rsp before rsp itself moves).
func (s *Space) stackGrowEligible(fi FaultInfo) bool {
	if fi.VA >= USER_STACK {
		return false
	}
	if USER_STACK-pgRoundDown(fi.VA) > StackCap {
		return false
	}

	slack := uintptr(StackSlack)
	if w := pushOperandWidth(fi.InstrBytes); w > 0 {
		slack = uintptr(w)
	}

	if fi.RSP == 0 {
		// No stack-pointer context supplied: allow anything within cap.
		return true
	}
	if fi.VA+slack < fi.RSP {
		return false
	}
	return true
}

// pushOperandWidth decodes a single x86 instruction and returns the operand
// width (in bytes) of a push/call-class instruction, or 0 if instr is empty,
// undecodable, or not push/call-like. This refines the fixed 8-byte
// StackSlack with the instruction's actual footprint when the caller can
// supply the faulting instruction's bytes (SPEC_FULL.md domain stack).
func pushOperandWidth(instr []byte) int {
	if len(instr) == 0 {
		return 0
	}
	inst, err := x86asm.Decode(instr, 64)
	if err != nil {
		return 0
	}
	switch inst.Op {
	case x86asm.PUSH, x86asm.CALL, x86asm.PUSHF, x86asm.PUSHFD, x86asm.PUSHFQ:
		return inst.MemBytes
	default:
		return 0
	}
}

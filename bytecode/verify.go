package bytecode

import "fmt"

// Verify checks a compiled-code object against the invariants the VM
// relies on:
//
//   - the header group boundaries are monotonic
//   - every instruction decodes and every literal argument is below
//     LiteralEnd
//   - every branch target lands on an instruction boundary inside the
//     same compiled-code object
//   - simulating execution along every control-flow path using the
//     flag table's stack adjustments never underflows and never
//     exceeds the recorded stack limit
//
// Nested functions are verified recursively.
func Verify(c *CompiledCode) error {
	if !(c.ArgumentEnd <= c.RegisterEnd && c.RegisterEnd <= c.IdentEnd &&
		c.IdentEnd <= c.ConstLiteralEnd && c.ConstLiteralEnd <= c.LiteralEnd) {
		return fmt.Errorf("bytecode: header group boundaries not monotonic: %d %d %d %d %d",
			c.ArgumentEnd, c.RegisterEnd, c.IdentEnd, c.ConstLiteralEnd, c.LiteralEnd)
	}
	if int(c.LiteralEnd) != len(c.LiteralPool) {
		return fmt.Errorf("bytecode: literal pool has %d entries, header says %d",
			len(c.LiteralPool), c.LiteralEnd)
	}

	instructions, err := c.Instructions()
	if err != nil {
		return err
	}

	byOffset := make(map[int]Instruction, len(instructions))
	for _, in := range instructions {
		byOffset[in.Offset] = in
	}
	end := len(c.Code)

	checkLiteral := func(in Instruction, index uint16) error {
		if index >= c.LiteralEnd {
			return fmt.Errorf("bytecode: literal index %d out of range at offset %d (%s)",
				index, in.Offset, in.Name())
		}
		return nil
	}

	for _, in := range instructions {
		if in.Flags&FlagLiteralArg != 0 {
			if err := checkLiteral(in, in.Literal); err != nil {
				return err
			}
		}
		if in.Flags&FlagLiteralArg2 != 0 {
			if err := checkLiteral(in, in.Literal2); err != nil {
				return err
			}
		}
		for _, init := range in.InitLiterals {
			if err := checkLiteral(in, init); err != nil {
				return err
			}
		}
		if in.IsBranch() {
			target := in.Target()
			if target < 0 || target > end || (target < end && byOffset[target].Size == 0) {
				return fmt.Errorf("bytecode: branch at offset %d targets %d, not an instruction boundary",
					in.Offset, target)
			}
		}
	}

	if err := c.simulateStack(byOffset); err != nil {
		return err
	}

	for i, fn := range c.Functions {
		if err := Verify(fn); err != nil {
			return fmt.Errorf("function#%d: %w", i, err)
		}
	}
	return nil
}

// successor describes one control-flow edge with the operand-stack
// depth on entry to the target.
type successor struct {
	offset int
	depth  int
}

// successors lists the control-flow edges out of one instruction with
// the stack depth propagated along each. A handful of branch opcodes
// keep or drop values asymmetrically between the taken and the
// fall-through paths; the rules below mirror the VM contract.
func (in Instruction) successors(entry int) []successor {
	next := in.Offset + in.Size
	adjusted := entry + StackAdjust(in.Flags)
	if in.Flags&FlagPopStackByte != 0 {
		adjusted -= int(in.ByteArg)
	}

	if in.Op == OpExtOpcode {
		switch {
		case in.ExtOp >= ExtWithCreateContext && in.ExtOp <= ExtWithCreateContext3,
			in.ExtOp >= ExtForInCreateContext && in.ExtOp <= ExtForInCreateContext3,
			in.ExtOp >= ExtTryCreateContext && in.ExtOp <= ExtTryCreateContext3,
			in.ExtOp >= ExtCatch && in.ExtOp <= ExtCatch3,
			in.ExtOp >= ExtFinally && in.ExtOp <= ExtFinally3:
			// Context markers: normal flow falls through; the branch
			// argument is metadata for the unwinder and handler table.
			return []successor{{next, adjusted}}
		case in.ExtOp >= ExtBranchIfForInHasNext && in.ExtOp <= ExtBranchIfForInHasNext3:
			return []successor{{in.Target(), adjusted}, {next, adjusted}}
		}
		return []successor{{next, adjusted}}
	}

	switch {
	case in.Op == OpReturn, in.Op == OpReturnWithUndefined, in.Op == OpThrow:
		return nil
	case in.Op >= OpJumpForward && in.Op <= OpJumpForward3,
		in.Op >= OpJumpBackward && in.Op <= OpJumpBackward3,
		in.Op >= OpJumpForwardExitContext && in.Op <= OpJumpForwardExitContext3:
		return []successor{{in.Target(), adjusted}}
	case in.Op >= OpBranchIfLogicalTrue && in.Op <= OpBranchIfLogicalTrue3,
		in.Op >= OpBranchIfLogicalFalse && in.Op <= OpBranchIfLogicalFalse3:
		// The tested value is kept on the taken path and popped on
		// the fall-through path.
		return []successor{{in.Target(), entry}, {next, adjusted}}
	case in.Op >= OpBranchIfStrictEqual && in.Op <= OpBranchIfStrictEqual3:
		// The taken path consumes the compared value as well.
		return []successor{{in.Target(), adjusted - 1}, {next, adjusted}}
	case in.IsBranch():
		return []successor{{in.Target(), adjusted}, {next, adjusted}}
	}
	return []successor{{next, adjusted}}
}

// simulateStack walks every reachable control-flow path propagating
// stack depths.
func (c *CompiledCode) simulateStack(byOffset map[int]Instruction) error {
	end := len(c.Code)
	seen := make(map[int]int, len(byOffset))
	work := []successor{{0, 0}}

	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		if cur.offset >= end {
			continue
		}
		if depth, ok := seen[cur.offset]; ok && depth >= cur.depth {
			continue
		}
		seen[cur.offset] = cur.depth

		in := byOffset[cur.offset]
		for _, succ := range in.successors(cur.depth) {
			if succ.depth < 0 {
				return fmt.Errorf("bytecode: stack underflow after offset %d (%s)", in.Offset, in.Name())
			}
			if int(c.RegisterEnd)+succ.depth > int(c.StackLimit) {
				return fmt.Errorf("bytecode: stack depth %d exceeds limit %d after offset %d (%s)",
					int(c.RegisterEnd)+succ.depth, c.StackLimit, in.Offset, in.Name())
			}
			work = append(work, succ)
		}
	}
	return nil
}

package core

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Opcode is one instruction tag from spec §4.7's instruction semantics
// table.
type Opcode int

const (
	OpPushConst Opcode = iota
	OpPop
	OpLoadLocal
	OpStoreLocal
	OpLoadGlobal
	OpStoreGlobal
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNegate
	OpNot
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpAnd
	OpOr
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpCall
	OpCallBuiltin
	OpReturn
	OpHalt
	OpToInt
	OpToFloat
	OpToString
	OpConcat
	OpArrayNew
	OpArrayGet
	OpArraySet
	OpArrayLen
)

var opcodeNames = map[Opcode]string{
	OpPushConst:   "push-const",
	OpPop:         "pop",
	OpLoadLocal:   "load-local",
	OpStoreLocal:  "store-local",
	OpLoadGlobal:  "load-global",
	OpStoreGlobal: "store-global",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpMod:         "mod",
	OpNegate:      "negate",
	OpNot:         "not",
	OpEq:          "eq",
	OpNotEq:       "neq",
	OpLess:        "less",
	OpLessEq:      "leq",
	OpGreater:     "greater",
	OpGreaterEq:   "geq",
	OpAnd:         "and",
	OpOr:          "or",
	OpJump:        "jump",
	OpJumpIfFalse: "jump-if-false",
	OpJumpIfTrue:  "jump-if-true",
	OpCall:        "call",
	OpCallBuiltin: "call-builtin",
	OpReturn:      "return",
	OpHalt:        "halt",
	OpToInt:       "to-int",
	OpToFloat:     "to-float",
	OpToString:    "to-string",
	OpConcat:      "concat",
	OpArrayNew:    "array-new",
	OpArrayGet:    "array-get",
	OpArraySet:    "array-set",
	OpArrayLen:    "array-len",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// SentinelIP marks a function entry whose start instruction index is not
// yet known (spec §3, GLOSSARY "Sentinel ordinal").
const SentinelIP uint32 = 0xFFFFFFFF

// Instruction is "an opcode plus two 32-bit operands plus a source
// location" (spec §3) stored as a fixed-size record rather than a packed
// byte stream — the direct representation of the spec's data model.
type Instruction struct {
	Op  Opcode
	A   uint32
	B   uint32
	Loc Location
}

// FuncEntry is a function table row (spec §3).
type FuncEntry struct {
	Name       string
	StartIP    uint32
	ParamCount int
	LocalCount int
}

// Chunk is the bytecode chunk (component B): an append-only instruction
// array plus a constant pool plus a function table.
type Chunk struct {
	Code      []Instruction
	Constants []Value
	Functions []FuncEntry
}

func NewChunk() *Chunk {
	return &Chunk{}
}

// Emit appends an instruction and returns its index, for later patching.
func (c *Chunk) Emit(op Opcode, a, b uint32, loc Location) int {
	c.Code = append(c.Code, Instruction{Op: op, A: a, B: b, Loc: loc})
	return len(c.Code) - 1
}

// Patch overwrites an already-emitted instruction's first operand, the
// mechanism backpatched jumps use once their target ip is known.
func (c *Chunk) Patch(idx int, newA uint32) {
	c.Code[idx].A = newA
}

// PatchB overwrites the second operand; codegen never needs to backpatch
// B today (jumps only ever patch A), but the bytecode chunk's contract
// (spec §4.2) only promises to patch "an instruction's first operand", so
// this stays unexported-adjacent and is here for symmetry/debug tooling.
func (c *Chunk) PatchB(idx int, newB uint32) {
	c.Code[idx].B = newB
}

// AddConstant deep-copies v into the pool if it is a string (the pool
// must own its storage independent of whatever produced v) and returns
// its ordinal.
func (c *Chunk) AddConstant(v Value) uint32 {
	if v.Kind == KindString {
		v = v.OwnCopy()
	}
	c.Constants = append(c.Constants, v)
	return uint32(len(c.Constants) - 1)
}

// AddFunction registers or updates a function entry. Passing SentinelIP
// preserves whatever start_ip was already recorded (used by the
// function-registration pass, which doesn't yet know bodies' offsets).
func (c *Chunk) AddFunction(name string, startIP uint32, paramCount int) int {
	if idx, ok := c.FindFunction(name); ok {
		if startIP != SentinelIP {
			c.Functions[idx].StartIP = startIP
		}
		c.Functions[idx].ParamCount = paramCount
		return idx
	}
	c.Functions = append(c.Functions, FuncEntry{
		Name:       name,
		StartIP:    startIP,
		ParamCount: paramCount,
	})
	return len(c.Functions) - 1
}

// FindFunction does the linear lookup spec §4.2 calls for.
func (c *Chunk) FindFunction(name string) (int, bool) {
	for i, fn := range c.Functions {
		if fn.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Disassemble renders the chunk the way ion/bytecode.go's
// Instructions.String() does: an ANSI-colored, address-prefixed listing,
// used by the CLI's --debug-bytecode flag.
func (c *Chunk) Disassemble() string {
	addr := color.New(color.FgYellow)
	var out strings.Builder

	for i, fn := range c.Functions {
		fmt.Fprintf(&out, "; function %d %q start=%d params=%d locals=%d\n",
			i, fn.Name, fn.StartIP, fn.ParamCount, fn.LocalCount)
	}

	for i, ins := range c.Code {
		fmt.Fprintf(&out, "%s %s", addr.Sprintf("%04d", i), ins.Op.String())
		switch ins.Op {
		case OpPushConst:
			fmt.Fprintf(&out, " %d", ins.A)
		case OpLoadLocal, OpStoreLocal, OpLoadGlobal, OpStoreGlobal:
			fmt.Fprintf(&out, " %d", ins.A)
		case OpJump, OpJumpIfFalse, OpJumpIfTrue:
			fmt.Fprintf(&out, " -> %d", ins.A)
		case OpCall, OpCallBuiltin:
			fmt.Fprintf(&out, " %d %d", ins.A, ins.B)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

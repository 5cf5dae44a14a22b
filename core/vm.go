package core

import (
	"bufio"
	"fmt"
	"io"
)

const maxStackDepth = 4096

// CallFrame is one activation record: where to resume the caller and
// this call's local slots (spec §3's "call frames (return_ip, stack_base,
// locals[])" — birch gives each frame its own locals slice rather than a
// shared stack_base offset, since locals are addressed by slot, not by
// stack position).
type CallFrame struct {
	ReturnIP uint32
	Locals   []Value
}

// VM is the bytecode virtual machine (component I).
type VM struct {
	chunk    *Chunk
	builtins *BuiltinRegistry
	diags    *Diagnostics

	stack   []Value
	globals []Value
	frames  []*CallFrame

	ip       uint32
	halted   bool
	exitCode int

	stdout      io.Writer
	stderr      io.Writer
	stdinSource io.Reader
	stdin       *bufio.Reader
}

func NewVM(chunk *Chunk, builtins *BuiltinRegistry, diags *Diagnostics, stdin io.Reader, stdout, stderr io.Writer) *VM {
	return &VM{
		chunk:       chunk,
		builtins:    builtins,
		diags:       diags,
		stdout:      stdout,
		stderr:      stderr,
		stdinSource: stdin,
	}
}

func (vm *VM) ExitCode() int { return vm.exitCode }

func (vm *VM) stderrLine(s string) {
	fmt.Fprintln(vm.stderr, s)
}

func (vm *VM) push(v Value) *RuntimeError {
	if len(vm.stack) >= maxStackDepth {
		return rtErrorf(vm.curLoc(), "stack overflow")
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (Value, *RuntimeError) {
	if len(vm.stack) == 0 {
		return Null(), rtErrorf(vm.curLoc(), "stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) curLoc() Location {
	if int(vm.ip) < len(vm.chunk.Code) {
		return vm.chunk.Code[vm.ip].Loc
	}
	return Location{}
}

func (vm *VM) curFrame() *CallFrame {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1]
}

func (vm *VM) ensureGlobal(slot uint32) {
	for uint32(len(vm.globals)) <= slot {
		vm.globals = append(vm.globals, Null())
	}
}

// Run executes chunk.Code from instruction 0 until a halt opcode, an exit
// builtin, or a runtime error stops it. It returns the error that halted
// it, if any; a nil return with vm.halted true after exit()/halt is the
// normal termination path.
func (vm *VM) Run() *RuntimeError {
	vm.ip = 0
	for !vm.halted {
		if int(vm.ip) >= len(vm.chunk.Code) {
			vm.halted = true
			return nil
		}
		ins := vm.chunk.Code[vm.ip]
		vm.ip++
		if err := vm.step(ins); err != nil {
			vm.halted = true
			vm.exitCode = 1
			vm.diags.Errorf(StageRuntime, ins.Loc, "%s", err.Reason)
			return err
		}
	}
	return nil
}

func (vm *VM) step(ins Instruction) *RuntimeError {
	switch ins.Op {
	case OpPushConst:
		return vm.push(borrowIfString(vm.chunk.Constants[ins.A]))

	case OpPop:
		_, err := vm.pop()
		return err

	case OpLoadLocal:
		frame := vm.curFrame()
		if frame == nil || int(ins.A) >= len(frame.Locals) {
			return rtErrorf(ins.Loc, "invalid local slot %d", ins.A)
		}
		return vm.push(borrowIfString(frame.Locals[ins.A]))

	case OpStoreLocal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		frame := vm.curFrame()
		if frame == nil || int(ins.A) >= len(frame.Locals) {
			return rtErrorf(ins.Loc, "invalid local slot %d", ins.A)
		}
		frame.Locals[ins.A].Release()
		frame.Locals[ins.A] = v.OwnCopy()
		return nil

	case OpLoadGlobal:
		vm.ensureGlobal(ins.A)
		return vm.push(borrowIfString(vm.globals[ins.A]))

	case OpStoreGlobal:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		vm.ensureGlobal(ins.A)
		vm.globals[ins.A].Release()
		vm.globals[ins.A] = v.OwnCopy()
		return nil

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return vm.execArith(ins)

	case OpNegate:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		switch a.Kind {
		case KindInt:
			return vm.push(Int(-a.I))
		case KindFloat:
			return vm.push(Float(-a.F))
		default:
			return rtErrorf(ins.Loc, "negate requires a numeric operand")
		}

	case OpNot:
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(Bool(!a.Truthy()))

	case OpEq, OpNotEq:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		eq := valuesEqual(a, b)
		if ins.Op == OpNotEq {
			eq = !eq
		}
		return vm.push(Bool(eq))

	case OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return vm.execCompare(ins)

	case OpAnd:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(Bool(a.Truthy() && b.Truthy()))

	case OpOr:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(Bool(a.Truthy() || b.Truthy()))

	case OpJump:
		vm.ip = ins.A
		return nil

	case OpJumpIfFalse:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if !v.Truthy() {
			vm.ip = ins.A
		}
		return nil

	case OpJumpIfTrue:
		v, err := vm.pop()
		if err != nil {
			return err
		}
		if v.Truthy() {
			vm.ip = ins.A
		}
		return nil

	case OpCall:
		return vm.execCall(ins)

	case OpCallBuiltin:
		return vm.execCallBuiltin(ins)

	case OpReturn:
		return vm.execReturn()

	case OpHalt:
		vm.halted = true
		return nil

	case OpToInt, OpToFloat, OpToString:
		return vm.execCast(ins)

	case OpConcat:
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(StringOwnedFrom(a.ToDisplay() + b.ToDisplay()))

	case OpArrayNew, OpArrayGet, OpArraySet, OpArrayLen:
		_ = vm.push(Null())
		return rtErrorf(ins.Loc, "array operations are not implemented")

	default:
		return rtErrorf(ins.Loc, "unknown opcode %v", ins.Op)
	}
}

// borrowIfString returns a borrowed alias of v's buffer when v is a
// string: the constant pool, a local slot, and a global slot each remain
// the one true owner of their storage, so reading them onto the operand
// stack must not claim ownership (spec §3/§4.1, "push a borrowed view").
func borrowIfString(v Value) Value {
	if v.Kind == KindString {
		return StringBorrow(v.Str)
	}
	return v
}

func (vm *VM) execArith(ins Instruction) *RuntimeError {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return rtErrorf(ins.Loc, "%s requires numeric operands", ins.Op)
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		switch ins.Op {
		case OpAdd:
			return vm.push(Int(a.I + b.I))
		case OpSub:
			return vm.push(Int(a.I - b.I))
		case OpMul:
			return vm.push(Int(a.I * b.I))
		case OpDiv:
			if b.I == 0 {
				_ = vm.push(Null())
				return rtErrorf(ins.Loc, "division by zero")
			}
			return vm.push(Int(a.I / b.I))
		case OpMod:
			if b.I == 0 {
				_ = vm.push(Null())
				return rtErrorf(ins.Loc, "division by zero")
			}
			return vm.push(Int(a.I % b.I))
		}
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	switch ins.Op {
	case OpAdd:
		return vm.push(Float(af + bf))
	case OpSub:
		return vm.push(Float(af - bf))
	case OpMul:
		return vm.push(Float(af * bf))
	case OpDiv:
		if bf == 0 {
			_ = vm.push(Null())
			return rtErrorf(ins.Loc, "division by zero")
		}
		return vm.push(Float(af / bf))
	case OpMod:
		// modulo is Int+Int only (spec §4.7); any Float-involving pairing
		// yields Null, matching the original VM's OP_MODULO. A zero divisor
		// is still a modulo-by-zero runtime error.
		if bf == 0 {
			_ = vm.push(Null())
			return rtErrorf(ins.Loc, "modulo by zero")
		}
		return vm.push(Null())
	}
	return rtErrorf(ins.Loc, "unreachable arithmetic opcode %v", ins.Op)
}

// valuesEqual implements equal/not-equal with the Int/Float promotion
// rule decided for mixed-numeric comparisons (SPEC_FULL.md §5.2); every
// other pairing falls back to Value.Eq's strict type match.
func valuesEqual(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		return af == bf
	}
	return a.Eq(b)
}

func (vm *VM) execCompare(ins Instruction) *RuntimeError {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	if !isNumeric(a) || !isNumeric(b) {
		return rtErrorf(ins.Loc, "%s requires numeric operands", ins.Op)
	}
	af, _ := a.AsFloat64()
	bf, _ := b.AsFloat64()
	var result bool
	switch ins.Op {
	case OpLess:
		result = af < bf
	case OpLessEq:
		result = af <= bf
	case OpGreater:
		result = af > bf
	case OpGreaterEq:
		result = af >= bf
	}
	return vm.push(Bool(result))
}

func (vm *VM) execCall(ins Instruction) *RuntimeError {
	if int(ins.A) >= len(vm.chunk.Functions) {
		return rtErrorf(ins.Loc, "invalid function index %d", ins.A)
	}
	fn := vm.chunk.Functions[ins.A]
	if fn.StartIP == SentinelIP {
		return rtErrorf(ins.Loc, "function %q has no body", fn.Name)
	}
	argc := int(ins.B)
	if len(vm.stack) < argc {
		return rtErrorf(ins.Loc, "stack underflow calling %q", fn.Name)
	}
	if len(vm.frames) >= maxStackDepth {
		return rtErrorf(ins.Loc, "stack overflow")
	}

	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]

	locals := make([]Value, fn.LocalCount)
	for i := 0; i < argc && i < len(locals); i++ {
		locals[i] = args[i].OwnCopy()
	}

	frame := &CallFrame{ReturnIP: vm.ip, Locals: locals}
	vm.frames = append(vm.frames, frame)
	vm.ip = fn.StartIP
	return nil
}

func (vm *VM) execReturn() *RuntimeError {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if len(vm.frames) == 0 {
		return rtErrorf(vm.curLoc(), "return outside a function")
	}
	frame := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.ip = frame.ReturnIP
	return vm.push(v.OwnCopy())
}

func (vm *VM) execCast(ins Instruction) *RuntimeError {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch ins.Op {
	case OpToInt:
		switch v.Kind {
		case KindInt:
			return vm.push(v)
		case KindFloat:
			return vm.push(Int(int64(v.F)))
		case KindBool:
			if v.B {
				return vm.push(Int(1))
			}
			return vm.push(Int(0))
		default:
			return rtErrorf(ins.Loc, "cannot convert %s to Int", v.Kind)
		}
	case OpToFloat:
		f, ok := v.AsFloat64()
		if !ok {
			return rtErrorf(ins.Loc, "cannot convert %s to Float", v.Kind)
		}
		return vm.push(Float(f))
	case OpToString:
		return vm.push(StringOwnedFrom(v.ToDisplay()))
	}
	return rtErrorf(ins.Loc, "unreachable cast opcode %v", ins.Op)
}

func (vm *VM) execCallBuiltin(ins Instruction) *RuntimeError {
	id := BuiltinID(ins.A)
	argc := int(ins.B)
	if len(vm.stack) < argc {
		return rtErrorf(ins.Loc, "stack underflow calling builtin %d", id)
	}
	args := make([]Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	vm.stack = vm.stack[:len(vm.stack)-argc]

	switch id {
	case BuiltinPrint:
		fmt.Fprint(vm.stdout, joinDisplay(args)+"\n")
		return vm.push(Null())
	case BuiltinPrintf:
		if len(args) == 0 {
			return rtErrorf(ins.Loc, "printf requires a format string")
		}
		if args[0].Kind != KindString {
			return rtErrorf(ins.Loc, "printf's first argument must be a string")
		}
		fmt.Fprint(vm.stdout, formatPrintf(string(args[0].Str), args[1:]))
		return vm.push(Null())
	}

	result, rerr := vm.builtins.Dispatch(id, vm, args)
	if rerr != nil {
		rerr.Loc = ins.Loc
		return rerr
	}
	if vm.halted {
		return nil
	}
	return vm.push(result)
}

func joinDisplay(args []Value) string {
	out := ""
	for _, a := range args {
		out += a.ToDisplay()
	}
	return out
}

// formatPrintf implements the colon-mode format string's placeholders:
// %d (and its %i alias), %f, %s, %c, %b and a literal %%. Extra
// arguments beyond the number of placeholders are ignored; a missing
// argument renders as <missing>.
func formatPrintf(format string, args []Value) string {
	var out []byte
	ai := 0
	next := func() Value {
		if ai < len(args) {
			v := args[ai]
			ai++
			return v
		}
		return StringOwnedFrom("<missing>")
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			out = append(out, c)
			continue
		}
		i++
		switch format[i] {
		case 'd', 'i', 'f', 's', 'c', 'b':
			if ai >= len(args) {
				out = append(out, "<missing>"...)
				continue
			}
		}
		switch format[i] {
		case 'd', 'i':
			v := next()
			n, _ := v.AsFloat64()
			out = append(out, []byte(fmt.Sprintf("%d", int64(n)))...)
		case 'f':
			v := next()
			f, _ := v.AsFloat64()
			out = append(out, []byte(fmt.Sprintf("%f", f))...)
		case 's':
			out = append(out, []byte(next().ToDisplay())...)
		case 'c':
			v := next()
			out = append(out, v.Ch)
		case 'b':
			v := next()
			if v.Truthy() {
				out = append(out, []byte("true")...)
			} else {
				out = append(out, []byte("false")...)
			}
		case '%':
			out = append(out, '%')
		default:
			out = append(out, '%', format[i])
		}
	}
	return string(out)
}
